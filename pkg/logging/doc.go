// Package logging provides the structured logging used across credbroker.
//
// It is a thin layer over log/slog. Every entry carries a subsystem tag so the
// output of the HTTP server, the OAuth flows and the credential store can be
// filtered independently.
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Bootstrap", "Listening on %s", addr)
//	logging.Error("Store", err, "Failed to fetch installation for team %s", teamID)
//
// Secrets must never be passed to these functions. Identifiers may be logged,
// optionally shortened with TruncateID.
package logging
