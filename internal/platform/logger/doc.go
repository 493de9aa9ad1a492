// Package logger configures the application's structured logger using the
// standard library log/slog package.
package logger
