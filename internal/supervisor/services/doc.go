// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package services adapts ListSync components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete type so
// the supervisor package does not import the api, realtime or store packages.
package services
