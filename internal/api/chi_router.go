// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authn         *auth.Authenticator
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authn *auth.Authenticator) *Router {
	return &Router{handler: handler, chiMiddleware: chiMW, authn: authn}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())
		r.Use(APISecurityHeaders())
		r.Post("/register", router.handler.Register)
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	r.Route("/api/v1/lists", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(auth.RequireAuth(router.authn))
		r.Use(middleware.SessionID)

		r.Get("/", router.handler.ListLists)
		r.Post("/", router.handler.CreateList)

		r.Route("/{list_id}", func(r chi.Router) {
			r.Get("/", router.handler.GetList)
			r.Put("/", router.handler.UpdateList)
			r.Delete("/", router.handler.DeleteList)

			r.Post("/share", router.handler.ShareList)
			r.Get("/members", router.handler.ListMembers)
			r.Delete("/members/{user_id}", router.handler.RemoveMember)

			r.Get("/items", router.handler.ListItems)
			r.Post("/items", router.handler.CreateItem)
			r.Put("/items/{item_id}", router.handler.UpdateItem)
			r.Delete("/items/{item_id}", router.handler.DeleteItem)
		})
	})

	r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws/lists/{list_id}", router.handler.WebSocket)

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}
