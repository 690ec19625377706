package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credbroker/internal/crypto"
	"credbroker/pkg/logging"
)

// IntegrationStatus is the lifecycle stage of a Google integration.
type IntegrationStatus string

const (
	// StatusAuthorized means tokens exist but no spreadsheet is attached yet.
	StatusAuthorized IntegrationStatus = "authorized"
	// StatusConfigured means a spreadsheet is attached.
	StatusConfigured IntegrationStatus = "configured"
)

// GoogleIntegration is the decrypted Google credential of one user in one
// workspace. WorkspaceID is the external Slack team id.
type GoogleIntegration struct {
	WorkspaceID   string
	UserID        string
	AccessToken   string
	RefreshToken  string
	Expiry        time.Time
	Scope         string
	Status        IntegrationStatus
	SpreadsheetID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenUpdate carries rotated token material. An empty RefreshToken keeps
// the stored one.
type TokenUpdate struct {
	WorkspaceID  string
	UserID       string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// GoogleIntegrations persists Google integrations.
type GoogleIntegrations struct {
	db     *DB
	cipher *crypto.Cipher
}

// NewGoogleIntegrations creates a GoogleIntegrations repository.
func NewGoogleIntegrations(db *DB, cipher *crypto.Cipher) *GoogleIntegrations {
	return &GoogleIntegrations{db: db, cipher: cipher}
}

const getGoogleSQL = `
SELECT w.team_id, g.user_id, g.access_token, g.refresh_token, g.expires_at, g.scope,
       g.status, g.spreadsheet_id, g.created_at, g.updated_at
FROM google_integrations g
JOIN workspaces w ON w.id = g.workspace_id
WHERE w.team_id = ? AND g.user_id = ?`

// Get returns the decrypted integration or ErrNotFound.
func (r *GoogleIntegrations) Get(ctx context.Context, workspaceID, userID string) (*GoogleIntegration, error) {
	var (
		gi                         GoogleIntegration
		accessToken                string
		refreshToken, scope, sheet sql.NullString
		expiresAt                  sql.NullTime
		status                     string
	)
	err := r.db.sql.QueryRowContext(ctx, r.db.rebind(getGoogleSQL), workspaceID, userID).Scan(
		&gi.WorkspaceID, &gi.UserID, &accessToken, &refreshToken, &expiresAt, &scope,
		&status, &sheet, &gi.CreatedAt, &gi.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching google integration for %s/%s: %w", workspaceID, userID, err)
	}

	if gi.AccessToken, err = r.cipher.Decrypt(accessToken); err != nil {
		logging.Audit("Store", err, "Failed to decrypt google access token for workspace=%s user=%s", workspaceID, userID)
		return nil, fmt.Errorf("decrypting access token for %s/%s: %w", workspaceID, userID, err)
	}
	if gi.RefreshToken, err = r.cipher.DecryptOptional(refreshToken.String); err != nil {
		logging.Audit("Store", err, "Failed to decrypt google refresh token for workspace=%s user=%s", workspaceID, userID)
		return nil, fmt.Errorf("decrypting refresh token for %s/%s: %w", workspaceID, userID, err)
	}

	if expiresAt.Valid {
		gi.Expiry = expiresAt.Time
	}
	gi.Scope = scope.String
	gi.Status = IntegrationStatus(status)
	gi.SpreadsheetID = sheet.String

	return &gi, nil
}

const upsertGoogleSQL = `
INSERT INTO google_integrations (
    workspace_id, user_id, access_token, refresh_token, expires_at, scope,
    status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (workspace_id, user_id) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = COALESCE(excluded.refresh_token, google_integrations.refresh_token),
    expires_at = excluded.expires_at,
    scope = excluded.scope,
    updated_at = excluded.updated_at`

// Upsert stores the result of an authorization. A re-authorization that
// carries no refresh token keeps the stored one, and an already configured
// integration keeps its status and spreadsheet.
func (r *GoogleIntegrations) Upsert(ctx context.Context, gi *GoogleIntegration) error {
	if gi.WorkspaceID == "" || gi.UserID == "" {
		return ErrMissingIdentity
	}

	access, err := r.cipher.Encrypt(gi.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := r.cipher.EncryptOptional(gi.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	internalID, err := r.db.upsertWorkspace(ctx, tx, gi.WorkspaceID, "", "")
	if err != nil {
		return err
	}

	now := r.db.now()
	_, err = tx.ExecContext(ctx, r.db.rebind(upsertGoogleSQL),
		internalID, gi.UserID, access, nullString(refresh), nullTime(gi.Expiry), nullString(gi.Scope),
		string(StatusAuthorized), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting google integration for %s/%s: %w", gi.WorkspaceID, gi.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing google integration for %s/%s: %w", gi.WorkspaceID, gi.UserID, err)
	}

	logging.Info("Store", "Stored google integration for workspace=%s user=%s (refresh_token=%t)",
		gi.WorkspaceID, gi.UserID, gi.RefreshToken != "")
	return nil
}

const updateGoogleTokensSQL = `
UPDATE google_integrations SET
    access_token = ?,
    refresh_token = COALESCE(?, refresh_token),
    expires_at = ?,
    updated_at = ?
WHERE workspace_id IN (SELECT id FROM workspaces WHERE team_id = ?) AND user_id = ?`

// UpdateTokens persists a token rotation. It returns ErrNotFound when the
// integration was deleted in the meantime.
func (r *GoogleIntegrations) UpdateTokens(ctx context.Context, u TokenUpdate) error {
	access, err := r.cipher.Encrypt(u.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := r.cipher.EncryptOptional(u.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(updateGoogleTokensSQL),
		access, nullString(refresh), nullTime(u.Expiry), r.db.now(), u.WorkspaceID, u.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating tokens for %s/%s: %w", u.WorkspaceID, u.UserID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const configureGoogleSQL = `
UPDATE google_integrations SET status = ?, spreadsheet_id = ?, updated_at = ?
WHERE workspace_id IN (SELECT id FROM workspaces WHERE team_id = ?) AND user_id = ?`

// Configure attaches a spreadsheet and marks the integration configured.
func (r *GoogleIntegrations) Configure(ctx context.Context, workspaceID, userID, spreadsheetID string) error {
	if spreadsheetID == "" {
		return errors.New("spreadsheet id is required")
	}

	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(configureGoogleSQL),
		string(StatusConfigured), spreadsheetID, r.db.now(), workspaceID, userID,
	)
	if err != nil {
		return fmt.Errorf("configuring google integration for %s/%s: %w", workspaceID, userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const deleteGoogleSQL = `
DELETE FROM google_integrations
WHERE workspace_id IN (SELECT id FROM workspaces WHERE team_id = ?) AND user_id = ?`

// Delete removes the integration. Deleting a missing integration is not an error.
func (r *GoogleIntegrations) Delete(ctx context.Context, workspaceID, userID string) error {
	if _, err := r.db.sql.ExecContext(ctx, r.db.rebind(deleteGoogleSQL), workspaceID, userID); err != nil {
		return fmt.Errorf("deleting google integration for %s/%s: %w", workspaceID, userID, err)
	}
	return nil
}
