// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HealthStatus is the body of the readiness probe.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	LookupCircuit     string  `json:"lookup_circuit"`
	Connections       int     `json:"connections"`
	Rooms             int     `json:"rooms"`
	Uptime            float64 `json:"uptime_seconds"`
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 200 when the database answers and the lookup circuit
// is not open, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:            "ready",
		DatabaseConnected: h.store != nil && h.store.Ping() == nil,
		LookupCircuit:     "closed",
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.guard != nil {
		status.LookupCircuit = h.guard.State().String()
	}
	if h.realtime != nil {
		status.Connections = h.realtime.Registry().Len()
		status.Rooms = h.realtime.Registry().RoomCount()
	}

	circuitOpen := h.guard != nil && h.guard.State() == gobreaker.StateOpen
	if !status.DatabaseConnected || circuitOpen {
		status.Status = "not_ready"
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service not ready", status)
		return
	}
	NewResponseWriter(w, r).Success(status)
}
