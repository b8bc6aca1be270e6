// Package iohelper provides helpers for reading HTTP response bodies
// with size limits and releasing connections for reuse.
package iohelper

import (
	"io"
	"log/slog"
)

// Body size limits
const (
	// SmallMaxBodySize is for error bodies and status pages (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for registry answers (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024

	// LargeMaxBodySize is for search result pages, which embed banners (32MB)
	LargeMaxBodySize int64 = 32 * 1024 * 1024
)

// ReadBody reads from r with a size limit. A nil reader yields an empty slice.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodySmall reads from r with an 8KB limit.
func ReadBodySmall(r io.Reader) ([]byte, error) {
	return ReadBody(r, SmallMaxBodySize)
}

// ReadBodyOrLog reads a small body and logs read failures instead of
// returning them. Used when the body only decorates an error message.
func ReadBodyOrLog(r io.Reader, logger *slog.Logger) []byte {
	data, err := ReadBodySmall(r)
	if err != nil && logger != nil {
		logger.Warn("body read failed", slog.String("error", err.Error()))
	}
	return data
}

// DrainAndClose reads any remaining data from r and closes it if it's a
// ReadCloser so the connection can be reused. Always returns nil so it
// can be deferred.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	// Drain at most 64KB
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
