// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package store

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/listsync/internal/logging"
)

// badgerLogger routes badger's internal logging into zerolog. Badger info
// output is chatty (compaction, value log GC) so it is demoted to debug.
type badgerLogger struct {
	l zerolog.Logger
}

func newBadgerLogger() *badgerLogger {
	return &badgerLogger{l: logging.WithComponent("badger")}
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(format), args...)
}
