/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. The returned logger carries the
// instance identity when one is configured, so interleaved logs from cluster
// deployments sharing one storage location stay attributable. Extra writers
// receive the raw JSON stream alongside the console.
func Setup(environment, instanceID string, extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	writers := make([]io.Writer, 0, len(extra)+1)
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
	writers = append(writers, extra...)

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if instanceID != "" {
		ctx = ctx.Str("instance", instanceID)
	}

	logger := ctx.Logger().Level(level)
	log.Logger = logger
	return logger
}
