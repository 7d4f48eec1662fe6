// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes slog-like ergonomics (Field helpers, With) without the slog
// dependency, writes human-readable console output and optionally a JSON
// file sink. The zero Logger is a safe no-op.
package logx
