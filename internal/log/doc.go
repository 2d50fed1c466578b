// Package log provides secure logging built on log/slog.
//
// SecureHandler wraps any slog.Handler and masks sensitive attribute values
// before they are written: HTTP credentials (Authorization, Cookie,
// X-Api-Key), values that look like tokens or keys, URLs carrying a password,
// and any extra keys the caller names, such as user-configured request
// headers. Masking applies in verbose mode too.
//
// NewFileLogger additionally writes JSON logs to a file rotated by
// lumberjack.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose, "x-tenant-id")
//	logger.Info("page visited", "url", pageURL)
//
// The same logger can be passed to tornago, which logs through slog.
package log
