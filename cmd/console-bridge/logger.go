// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/console/lib/config"
)

// newLogger builds the process logger from the log section of the
// configuration. Format "auto" writes text to a terminal and JSON
// otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(newHandler(os.Stderr, cfg.Log.Format, cfg.LogLevel(), term.IsTerminal(int(os.Stderr.Fd()))))
}

func newHandler(writer io.Writer, format string, level slog.Level, terminal bool) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(writer, options)
	case "json":
		return slog.NewJSONHandler(writer, options)
	}
	if terminal {
		return slog.NewTextHandler(writer, options)
	}
	return slog.NewJSONHandler(writer, options)
}
