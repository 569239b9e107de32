package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops everything, for wiring services
// in tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
