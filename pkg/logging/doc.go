// Package logging constructs the process-wide structured logger.
//
// All operational logging in logtx goes through log/slog. This package
// owns handler construction (level, text/json format, output writer)
// and provides a MultiHandler for fanning one record out to several
// handlers. Transaction delivery is not logging and never passes
// through here; this is strictly for platform diagnostics such as
// dispatch faults and stream lifecycle events.
package logging
