// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

/*
Package supervisor runs ListSync's long-lived services under a suture v4
supervisor tree.

	RootSupervisor ("listsync")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService
	├── RealtimeSupervisor ("realtime-layer")
	│   └── RealtimeService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failure in one layer restarts only that layer's services. Supervisor events
are logged through sutureslog on top of the zerolog-backed slog handler from
internal/logging.

Canceling the context passed to Serve stops the layers. The realtime layer
closes every open WebSocket with 1001 (going away) on its way out.
*/
package supervisor
