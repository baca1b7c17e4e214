// Package sl holds slog attribute helpers.
package sl

import "log/slog"

// Err returns an "error" attribute with the message of err.
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
