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

// Installation is a Slack app installation for one workspace. Bot and User
// are nil when the corresponding segment was not issued.
type Installation struct {
	TeamID              string
	TeamName            string
	EnterpriseID        string
	IsEnterpriseInstall bool
	AppID               string
	Bot                 *BotCredentials
	User                *UserCredentials
	InstalledAt         time.Time
}

// BotCredentials is the bot segment of an installation.
type BotCredentials struct {
	Token  string
	ID     string
	UserID string
	Scopes []string
}

// UserCredentials is the user segment of an installation.
type UserCredentials struct {
	Token  string
	ID     string
	Scopes []string
}

// InstallationQuery identifies an installation.
type InstallationQuery struct {
	TeamID              string
	EnterpriseID        string
	IsEnterpriseInstall bool
}

// key returns the external workspace id the installation is stored under.
// Enterprise wide installs are keyed by the enterprise even when the query
// also names the team it was made from.
func (q InstallationQuery) key() (string, error) {
	if q.IsEnterpriseInstall && q.EnterpriseID != "" {
		return q.EnterpriseID, nil
	}
	if q.TeamID != "" {
		return q.TeamID, nil
	}
	if q.EnterpriseID != "" {
		return q.EnterpriseID, nil
	}
	return "", ErrMissingIdentity
}

// InstallationSummary is an installation without its secrets.
type InstallationSummary struct {
	TeamID       string
	TeamName     string
	EnterpriseID string
	AppID        string
	BotUserID    string
	HasBotToken  bool
	HasUserToken bool
	InstalledAt  time.Time
}

// InstallationStore persists Slack installations.
type InstallationStore struct {
	db     *DB
	cipher *crypto.Cipher
}

// NewInstallationStore creates an InstallationStore.
func NewInstallationStore(db *DB, cipher *crypto.Cipher) *InstallationStore {
	return &InstallationStore{db: db, cipher: cipher}
}

const upsertInstallationSQL = `
INSERT INTO slack_installations (
    workspace_id, app_id, enterprise_id, is_enterprise_install,
    bot_token, bot_id, bot_user_id, bot_scopes,
    user_token, user_id, user_scopes, installed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (workspace_id) DO UPDATE SET
    app_id = excluded.app_id,
    enterprise_id = excluded.enterprise_id,
    is_enterprise_install = excluded.is_enterprise_install,
    bot_token = excluded.bot_token,
    bot_id = excluded.bot_id,
    bot_user_id = excluded.bot_user_id,
    bot_scopes = excluded.bot_scopes,
    user_token = excluded.user_token,
    user_id = excluded.user_id,
    user_scopes = excluded.user_scopes,
    installed_at = excluded.installed_at`

// Store creates or replaces the installation for its workspace.
func (s *InstallationStore) Store(ctx context.Context, inst *Installation) error {
	key, err := InstallationQuery{
		TeamID:              inst.TeamID,
		EnterpriseID:        inst.EnterpriseID,
		IsEnterpriseInstall: inst.IsEnterpriseInstall,
	}.key()
	if err != nil {
		return err
	}

	var (
		botToken, botID, botUserID, botScopes string
		userToken, userID, userScopes         string
	)
	if inst.Bot != nil {
		if botToken, err = s.cipher.EncryptOptional(inst.Bot.Token); err != nil {
			return fmt.Errorf("encrypting bot token: %w", err)
		}
		botID, botUserID, botScopes = inst.Bot.ID, inst.Bot.UserID, joinScopes(inst.Bot.Scopes)
	}
	if inst.User != nil {
		if userToken, err = s.cipher.EncryptOptional(inst.User.Token); err != nil {
			return fmt.Errorf("encrypting user token: %w", err)
		}
		userID, userScopes = inst.User.ID, joinScopes(inst.User.Scopes)
	}

	installedAt := inst.InstalledAt
	if installedAt.IsZero() {
		installedAt = s.db.now()
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	workspaceID, err := s.db.upsertWorkspace(ctx, tx, key, inst.EnterpriseID, inst.TeamName)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.db.rebind(upsertInstallationSQL),
		workspaceID, inst.AppID, nullString(inst.EnterpriseID), inst.IsEnterpriseInstall,
		botToken, botID, botUserID, botScopes,
		nullString(userToken), nullString(userID), nullString(userScopes), installedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting installation for %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing installation for %s: %w", key, err)
	}

	logging.Info("Store", "Stored installation for workspace %s (bot=%t user=%t)", key, inst.Bot != nil, inst.User != nil)
	return nil
}

const fetchInstallationSQL = `
SELECT w.team_id, w.name, i.app_id, i.enterprise_id, i.is_enterprise_install,
       i.bot_token, i.bot_id, i.bot_user_id, i.bot_scopes,
       i.user_token, i.user_id, i.user_scopes, i.installed_at
FROM slack_installations i
JOIN workspaces w ON w.id = i.workspace_id
WHERE w.team_id = ?`

// Fetch returns the decrypted installation. ErrNotFound means the app is not
// installed. Bot is nil only when no bot segment was stored; stored bot
// metadata without a token comes back with an empty Token.
func (s *InstallationStore) Fetch(ctx context.Context, q InstallationQuery) (*Installation, error) {
	key, err := q.key()
	if err != nil {
		return nil, err
	}

	var (
		inst                                  Installation
		enterpriseID                          sql.NullString
		botToken, botID, botUserID, botScopes string
		userToken, userID, userScopes         sql.NullString
	)
	err = s.db.sql.QueryRowContext(ctx, s.db.rebind(fetchInstallationSQL), key).Scan(
		&inst.TeamID, &inst.TeamName, &inst.AppID, &enterpriseID, &inst.IsEnterpriseInstall,
		&botToken, &botID, &botUserID, &botScopes,
		&userToken, &userID, &userScopes, &inst.InstalledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching installation for %s: %w", key, err)
	}
	inst.EnterpriseID = enterpriseID.String

	if botToken != "" || botID != "" || botUserID != "" || botScopes != "" {
		plain, err := s.cipher.DecryptOptional(botToken)
		if err != nil {
			logging.Audit("Store", err, "Failed to decrypt bot token for workspace %s", key)
			return nil, fmt.Errorf("decrypting bot token for %s: %w", key, err)
		}
		inst.Bot = &BotCredentials{Token: plain, ID: botID, UserID: botUserID, Scopes: splitScopes(botScopes)}
	}

	if userToken.String != "" {
		plain, err := s.cipher.Decrypt(userToken.String)
		if err != nil {
			logging.Audit("Store", err, "Failed to decrypt user token for workspace %s", key)
			return nil, fmt.Errorf("decrypting user token for %s: %w", key, err)
		}
		inst.User = &UserCredentials{Token: plain, ID: userID.String, Scopes: splitScopes(userScopes.String)}
	}

	return &inst, nil
}

const deleteInstallationSQL = `
DELETE FROM slack_installations
WHERE workspace_id IN (SELECT id FROM workspaces WHERE team_id = ?)`

// Delete removes the installation. Deleting a missing installation is not an
// error and the workspace row is kept.
func (s *InstallationStore) Delete(ctx context.Context, q InstallationQuery) error {
	key, err := q.key()
	if err != nil {
		return err
	}

	res, err := s.db.sql.ExecContext(ctx, s.db.rebind(deleteInstallationSQL), key)
	if err != nil {
		return fmt.Errorf("deleting installation for %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Info("Store", "Deleted installation for workspace %s", key)
	}
	return nil
}

const listInstallationsSQL = `
SELECT w.team_id, w.name, i.enterprise_id, i.app_id, i.bot_user_id,
       CASE WHEN i.bot_token = '' THEN 0 ELSE 1 END,
       CASE WHEN i.user_token IS NULL OR i.user_token = '' THEN 0 ELSE 1 END,
       i.installed_at
FROM slack_installations i
JOIN workspaces w ON w.id = i.workspace_id
ORDER BY w.team_id`

// List returns every installation without secrets.
func (s *InstallationStore) List(ctx context.Context) ([]InstallationSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx, listInstallationsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing installations: %w", err)
	}
	defer rows.Close()

	var result []InstallationSummary
	for rows.Next() {
		var (
			sum          InstallationSummary
			enterpriseID sql.NullString
		)
		if err := rows.Scan(&sum.TeamID, &sum.TeamName, &enterpriseID, &sum.AppID, &sum.BotUserID,
			&sum.HasBotToken, &sum.HasUserToken, &sum.InstalledAt); err != nil {
			return nil, fmt.Errorf("scanning installation: %w", err)
		}
		sum.EnterpriseID = enterpriseID.String
		result = append(result, sum)
	}
	return result, rows.Err()
}
