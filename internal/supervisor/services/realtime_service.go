// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package services

import "context"

// ContextRunner matches (*realtime.Manager).RunWithContext.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RealtimeService supervises the WebSocket connection manager. On shutdown
// the manager closes every registered connection with 1001.
type RealtimeService struct {
	manager ContextRunner
	name    string
}

// NewRealtimeService creates a new realtime manager service wrapper.
func NewRealtimeService(manager ContextRunner) *RealtimeService {
	return &RealtimeService{
		manager: manager,
		name:    "realtime-manager",
	}
}

// Serve implements suture.Service.
func (s *RealtimeService) Serve(ctx context.Context) error {
	return s.manager.RunWithContext(ctx)
}

// String implements fmt.Stringer. Suture uses it in log messages.
func (s *RealtimeService) String() string {
	return s.name
}
