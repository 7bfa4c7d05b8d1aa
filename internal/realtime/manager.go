// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/config"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/metrics"
)

// ShutdownReason identifies why the manager stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the parent deadline expired.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrBackendAttached is returned when a second backend is attached to a
// Broadcaster.
var ErrBackendAttached = errors.New("realtime: broadcast backend already attached")

// Options tune connection lifecycle and fan-out.
type Options struct {
	WriteWait            time.Duration
	PongWait             time.Duration
	PingPeriod           time.Duration
	MaxMessageSize       int64
	BroadcastConcurrency int
	InboundRate          float64
	InboundBurst         int
}

// OptionsFromConfig maps the realtime config section to Options.
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		WriteWait:            cfg.WriteWait,
		PongWait:             cfg.PongWait,
		PingPeriod:           cfg.PingPeriod,
		MaxMessageSize:       cfg.MaxMessageSize,
		BroadcastConcurrency: cfg.BroadcastConcurrency,
		InboundRate:          cfg.InboundRate,
		InboundBurst:         cfg.InboundBurst,
	}
}

// DefaultOptions returns the values used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		WriteWait:            10 * time.Second,
		PongWait:             60 * time.Second,
		PingPeriod:           54 * time.Second,
		MaxMessageSize:       4096,
		BroadcastConcurrency: 64,
		InboundRate:          5,
		InboundBurst:         10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.BroadcastConcurrency <= 0 {
		o.BroadcastConcurrency = d.BroadcastConcurrency
	}
	if o.InboundRate <= 0 {
		o.InboundRate = d.InboundRate
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = d.InboundBurst
	}
	return o
}

// Manager accepts WebSocket connections for lists and fans change events
// out to them.
type Manager struct {
	registry *Registry
	authn    TokenAuthenticator
	access   AccessVerifier
	opts     Options
	logger   zerolog.Logger

	now          func() time.Time
	newSessionID func() string

	shuttingDown atomic.Bool
}

// NewManager creates a Manager. Zero option fields take DefaultOptions values.
func NewManager(authn TokenAuthenticator, access AccessVerifier, opts Options) *Manager {
	return &Manager{
		registry:     NewRegistry(),
		authn:        authn,
		access:       access,
		opts:         opts.withDefaults(),
		logger:       logging.WithComponent("realtime"),
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
}

// Registry exposes the connection registry for inspection.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetAsActiveBackend attaches m to b so producers' notifications reach
// connected clients.
func (m *Manager) SetAsActiveBackend(b *Broadcaster) error {
	return b.Attach(m)
}

// ServeConn runs the lifecycle of one upgraded socket: authenticate, check
// access, register, greet, then read until the client goes away. It returns
// once the connection is closed and deregistered.
func (m *Manager) ServeConn(ctx context.Context, socket Socket, token string, listID int64) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx).With().
		Str("component", "realtime").
		Int64("list_id", listID).
		Logger()

	if m.shuttingDown.Load() {
		rejectSocket(socket, m.opts.WriteWait, websocket.CloseGoingAway, "server shutting down")
		return
	}

	identity, err := m.authn.Authenticate(ctx, token)
	if err != nil {
		reason := string(auth.ReasonOf(err))
		if reason == "" {
			reason = "authentication_failed"
		}
		metrics.WSHandshakeRejections.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("reason", reason).Msg("WebSocket authentication failed")
		rejectSocket(socket, m.opts.WriteWait, websocket.ClosePolicyViolation, "authentication failed")
		return
	}
	log = log.With().Str("user_id", identity.UserID).Logger()

	if err := checkAccess(ctx, m.access, identity.UserID, listID); err != nil {
		var ae *accessError
		reason := rejectAccessDenied
		if errors.As(err, &ae) {
			reason = ae.reason
		}
		metrics.WSHandshakeRejections.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("reason", reason).Msg("WebSocket list access denied")
		rejectSocket(socket, m.opts.WriteWait, websocket.CloseUnsupportedData, "access denied")
		return
	}

	conn := newConnection(socket, identity.UserID, listID, m.newSessionID(), m.opts)
	conn.correlationID = logging.CorrelationIDFromContext(ctx)
	log = log.With().Str("session_id", conn.sessionID).Uint64("conn_id", conn.id).Logger()

	if err := m.open(ctx, conn); err != nil {
		log.Warn().Err(err).Msg("WebSocket connection setup failed")
		m.disconnect(conn, websocket.CloseInternalServerErr, "")
		return
	}
	defer m.disconnect(conn, websocket.CloseNormalClosure, "")

	log.Info().Msg("WebSocket client connected")

	done := make(chan struct{})
	defer close(done)
	go m.keepalive(conn, done)

	m.readLoop(ctx, conn, log)
	log.Info().Msg("WebSocket client disconnected")
}

// open registers conn and sends connection_established while holding the
// write lock, so no broadcast can reach the client ahead of the greeting.
func (m *Manager) open(ctx context.Context, conn *Connection) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	if err := m.registry.Register(conn.roomID, conn, conn.userID, conn.sessionID); err != nil {
		return err
	}
	if m.shuttingDown.Load() {
		return errors.New("server shutting down")
	}

	payload, err := json.Marshal(ConnectionEstablished{
		Type:      MessageTypeConnectionEstablished,
		Message:   fmt.Sprintf("Connected to list %d", conn.roomID),
		SessionID: conn.sessionID,
		Timestamp: formatTimestamp(m.now()),
	})
	if err != nil {
		return err
	}
	if err := conn.writeLocked(payload); err != nil {
		metrics.WSErrors.WithLabelValues("write").Inc()
		return err
	}
	metrics.WSMessagesSent.Inc()
	return nil
}

// readLoop processes inbound frames until the socket fails or closes.
func (m *Manager) readLoop(ctx context.Context, conn *Connection, log zerolog.Logger) {
	socket := conn.socket
	socket.SetReadLimit(m.opts.MaxMessageSize)
	_ = socket.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		_ = socket.SetReadDeadline(time.Now().Add(m.opts.PongWait))

		if !conn.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			log.Warn().Msg("Dropping WebSocket frame over rate limit")
			continue
		}
		m.handleFrame(ctx, conn, data, log)
	}
}

// handleFrame answers pings. Malformed and unknown frames are logged and
// ignored; they never close the connection.
func (m *Manager) handleFrame(ctx context.Context, conn *Connection, data []byte, log zerolog.Logger) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.WSErrors.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Msg("Ignoring malformed WebSocket frame")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		err := conn.writeJSON(ctx, Pong{Type: MessageTypePong, Timestamp: formatTimestamp(m.now())})
		if err != nil {
			metrics.WSErrors.WithLabelValues("write").Inc()
			log.Debug().Err(err).Msg("Failed to send pong")
			return
		}
		metrics.WSMessagesSent.Inc()
	default:
		log.Warn().Str("type", msg.Type).Msg("Ignoring unknown WebSocket message type")
	}
}

// keepalive sends protocol pings until done is closed or a ping fails.
func (m *Manager) keepalive(conn *Connection, done <-chan struct{}) {
	ticker := time.NewTicker(m.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// disconnect deregisters conn and closes it. Safe to call more than once.
func (m *Manager) disconnect(conn *Connection, code int, reason string) {
	m.registry.Deregister(conn)
	conn.close(code, reason)
}

// Broadcast sends event to every connection in roomID not matched by
// exclude. Writes run concurrently, bounded by BroadcastConcurrency. A failed
// write does not affect other recipients; failed connections are removed
// after all writes finish. Each write is bounded by WriteWait. If ctx is
// already done, the remaining recipients are counted as Abandoned and stay
// registered.
func (m *Manager) Broadcast(ctx context.Context, roomID int64, event *ChangeEvent, exclude Exclusion) (BroadcastResult, error) {
	start := time.Now()
	var result BroadcastResult

	payload, err := json.Marshal(event)
	if err != nil {
		return result, fmt.Errorf("marshal %s envelope: %w", event.Type, err)
	}

	snapshot := m.registry.ConnectionsInRoom(roomID)
	targets := make([]*Connection, 0, len(snapshot))
	for _, reg := range snapshot {
		if exclude.skips(reg) {
			result.Skipped++
			continue
		}
		targets = append(targets, reg.Conn)
	}
	result.Recipients = len(targets)

	outcomes := make([]writeOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(m.opts.BroadcastConcurrency)
	for i, conn := range targets {
		g.Go(func() error {
			err := conn.write(ctx, payload)
			switch {
			case err == nil:
				outcomes[i] = writeDelivered
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				outcomes[i] = writeAbandoned
			default:
				outcomes[i] = writeFailed
				logging.Ctx(ctx).Debug().
					Err(err).
					Uint64("conn_id", conn.id).
					Str("conn_correlation_id", conn.correlationID).
					Int64("list_id", roomID).
					Msg("WebSocket broadcast write failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	// Only a failed socket write removes a connection. Abandoned writes
	// leave the recipient registered.
	for i, conn := range targets {
		switch outcomes[i] {
		case writeDelivered:
			result.Delivered++
		case writeAbandoned:
			result.Abandoned++
		case writeFailed:
			result.Failed++
			metrics.WSErrors.WithLabelValues("write").Inc()
			m.disconnect(conn, websocket.CloseGoingAway, "")
		}
	}
	if result.Abandoned > 0 {
		logging.Ctx(ctx).Warn().
			Err(ctx.Err()).
			Int64("list_id", roomID).
			Int("abandoned", result.Abandoned).
			Msg("Broadcast context ended before delivery")
	}

	metrics.RecordBroadcast(event.Type, string(event.EventType), result.Delivered, result.Failed, time.Since(start))
	return result, nil
}

// Evict closes the connections in roomID owned by userID, or every
// connection in the room when userID is empty. It returns how many were
// closed.
func (m *Manager) Evict(ctx context.Context, roomID int64, userID string, code int, reason string) int {
	evicted := 0
	for _, reg := range m.registry.ConnectionsInRoom(roomID) {
		if userID != "" && reg.UserID != userID {
			continue
		}
		m.disconnect(reg.Conn, code, reason)
		evicted++
	}
	if evicted > 0 {
		logging.Ctx(ctx).Info().
			Str("component", "realtime").
			Int64("list_id", roomID).
			Str("user_id", userID).
			Int("close_code", code).
			Int("evicted", evicted).
			Msg("Evicted WebSocket connections")
	}
	return evicted
}

// RunWithContext blocks until ctx is done, then closes every connection
// with 1001 (going away). It always returns ctx.Err().
func (m *Manager) RunWithContext(ctx context.Context) error {
	<-ctx.Done()
	m.shuttingDown.Store(true)

	closed := 0
	for _, reg := range m.registry.All() {
		m.disconnect(reg.Conn, websocket.CloseGoingAway, "server shutting down")
		closed++
	}

	m.logger.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("connections_closed", closed).
		Msg("realtime manager stopped")
	return ctx.Err()
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

type writeOutcome uint8

const (
	writeDelivered writeOutcome = iota
	writeFailed
	writeAbandoned
)

// rejectSocket closes a socket that was never registered.
func rejectSocket(socket Socket, writeWait time.Duration, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = socket.Close()
}
