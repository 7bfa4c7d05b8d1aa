// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package api

import "errors"

var (
	// ErrInvalidPathID is returned for a non-numeric or non-positive path id.
	ErrInvalidPathID = errors.New("invalid id in path")

	// ErrEmptyUpdate is returned when an item update sets no field.
	ErrEmptyUpdate = errors.New("update must set at least one field")
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10
