package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const upsertWorkspaceSQL = `
INSERT INTO workspaces (id, team_id, enterprise_id, name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (team_id) DO UPDATE SET
    enterprise_id = COALESCE(excluded.enterprise_id, workspaces.enterprise_id),
    name = CASE WHEN excluded.name = '' THEN workspaces.name ELSE excluded.name END,
    updated_at = excluded.updated_at
RETURNING id`

// upsertWorkspace resolves the internal id for an external team id, creating
// the workspace row on first sight. Empty name and enterprise id never
// overwrite stored values.
func (db *DB) upsertWorkspace(ctx context.Context, q execer, teamID, enterpriseID, name string) (string, error) {
	now := db.now()

	var id string
	err := q.QueryRowContext(ctx, db.rebind(upsertWorkspaceSQL),
		uuid.NewString(), teamID, nullString(enterpriseID), name, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting workspace %s: %w", teamID, err)
	}
	return id, nil
}
