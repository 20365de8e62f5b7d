// Package logx is a thin zerolog wrapper used across the bot.
//
// It provides a value-type Logger with fixed fields, a Field API mirroring
// slog.Attr ergonomics, and a Service that can hot-swap sinks and level at
// runtime without invalidating loggers already handed out.
package logx
