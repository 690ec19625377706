// Package store persists tenant credentials.
//
// It holds two record kinds: Slack installations (one per workspace) and
// Google integrations (one per workspace and user). Every secret column is
// encrypted with a crypto.Cipher before it is written and decrypted when it
// is read. All writes are single upsert statements keyed on the natural
// conflict target, so concurrent callbacks for the same tenant converge on
// the last write.
//
// Two database/sql drivers are supported: "sqlite" (modernc.org/sqlite) and
// "postgres" (github.com/lib/pq). Queries are written with "?" placeholders
// and rewritten for Postgres.
package store
