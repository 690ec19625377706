package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstallationStore(t *testing.T) (*InstallationStore, *DB) {
	t.Helper()
	db := newTestDB(t)
	return NewInstallationStore(db, newTestCipher(t)), db
}

func sampleInstallation(teamID, botToken string) *Installation {
	return &Installation{
		TeamID:   teamID,
		TeamName: "Acme",
		AppID:    "A1",
		Bot: &BotCredentials{
			Token:  botToken,
			ID:     "B1",
			UserID: "UB1",
			Scopes: []string{"chat:write", "commands"},
		},
	}
}

func TestInstallationStore_RoundTrip(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	inst := sampleInstallation("T1", "xoxb-1")
	inst.User = &UserCredentials{Token: "xoxp-1", ID: "U1", Scopes: []string{"search:read"}}
	require.NoError(t, s.Store(ctx, inst))

	got, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TeamID)
	assert.Equal(t, "Acme", got.TeamName)
	assert.Equal(t, "A1", got.AppID)
	require.NotNil(t, got.Bot)
	assert.Equal(t, "xoxb-1", got.Bot.Token)
	assert.Equal(t, "UB1", got.Bot.UserID)
	assert.Equal(t, []string{"chat:write", "commands"}, got.Bot.Scopes)
	require.NotNil(t, got.User)
	assert.Equal(t, "xoxp-1", got.User.Token)
	assert.Equal(t, "U1", got.User.ID)
	assert.False(t, got.InstalledAt.IsZero())
}

func TestInstallationStore_TokensEncryptedAtRest(t *testing.T) {
	s, db := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-plain")))

	var stored string
	require.NoError(t, db.sql.QueryRow("SELECT bot_token FROM slack_installations").Scan(&stored))
	assert.NotContains(t, stored, "xoxb-plain")
	assert.Len(t, strings.Split(stored, ":"), 3)
}

func TestInstallationStore_ReinstallReplaces(t *testing.T) {
	s, db := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-old")))
	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-new")))

	assert.Equal(t, 1, countRows(t, db, "slack_installations"))
	assert.Equal(t, 1, countRows(t, db, "workspaces"))

	got, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "xoxb-new", got.Bot.Token)
}

func TestInstallationStore_EmptyNameKeepsStoredName(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-1")))
	again := sampleInstallation("T1", "xoxb-2")
	again.TeamName = ""
	require.NoError(t, s.Store(ctx, again))

	got, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.TeamName)
}

func TestInstallationStore_NoBotSegment(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &Installation{
		TeamID: "T1",
		User:   &UserCredentials{Token: "xoxp-1", ID: "U1"},
	}))

	got, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	require.NoError(t, err)
	assert.Nil(t, got.Bot)
	require.NotNil(t, got.User)
	assert.Equal(t, "xoxp-1", got.User.Token)
}

func TestInstallationStore_EnterpriseKey(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	inst := sampleInstallation("", "xoxb-org")
	inst.EnterpriseID = "E1"
	inst.IsEnterpriseInstall = true
	require.NoError(t, s.Store(ctx, inst))

	got, err := s.Fetch(ctx, InstallationQuery{EnterpriseID: "E1", IsEnterpriseInstall: true})
	require.NoError(t, err)
	assert.Equal(t, "E1", got.EnterpriseID)
	assert.True(t, got.IsEnterpriseInstall)
	assert.Equal(t, "xoxb-org", got.Bot.Token)
}

func TestInstallationStore_EnterpriseQueryWithTeam(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	inst := sampleInstallation("", "xoxb-org")
	inst.EnterpriseID = "E1"
	inst.IsEnterpriseInstall = true
	require.NoError(t, s.Store(ctx, inst))

	q := InstallationQuery{TeamID: "T1", EnterpriseID: "E1", IsEnterpriseInstall: true}
	got, err := s.Fetch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-org", got.Bot.Token)

	// A team-level query inside the same enterprise does not see the org install.
	_, err = s.Fetch(ctx, InstallationQuery{TeamID: "T1", EnterpriseID: "E1"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, q))
	_, err = s.Fetch(ctx, InstallationQuery{EnterpriseID: "E1", IsEnterpriseInstall: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstallationStore_EnterpriseInstallWithTeamStoredByEnterprise(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	inst := sampleInstallation("T1", "xoxb-org")
	inst.EnterpriseID = "E1"
	inst.IsEnterpriseInstall = true
	require.NoError(t, s.Store(ctx, inst))

	_, err := s.Fetch(ctx, InstallationQuery{EnterpriseID: "E1", IsEnterpriseInstall: true})
	require.NoError(t, err)
}

func TestInstallationStore_BotMetadataWithoutToken(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "")))

	got, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	require.NoError(t, err)
	require.NotNil(t, got.Bot)
	assert.Empty(t, got.Bot.Token)
	assert.Equal(t, "B1", got.Bot.ID)
	assert.Equal(t, "UB1", got.Bot.UserID)
	assert.Equal(t, []string{"chat:write", "commands"}, got.Bot.Scopes)
}

func TestInstallationStore_MissingIdentity(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Store(ctx, &Installation{}), ErrMissingIdentity)
	_, err := s.Fetch(ctx, InstallationQuery{})
	assert.ErrorIs(t, err, ErrMissingIdentity)
	assert.ErrorIs(t, s.Delete(ctx, InstallationQuery{}), ErrMissingIdentity)
}

func TestInstallationStore_DeleteIsIdempotent(t *testing.T) {
	s, db := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-1")))
	require.NoError(t, s.Delete(ctx, InstallationQuery{TeamID: "T1"}))

	_, err := s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, InstallationQuery{TeamID: "T1"}))
	require.NoError(t, s.Delete(ctx, InstallationQuery{TeamID: "never-installed"}))

	assert.Equal(t, 1, countRows(t, db, "workspaces"))
}

func TestInstallationStore_FetchCorruptedToken(t *testing.T) {
	s, db := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T1", "xoxb-1")))
	_, err := db.sql.Exec("UPDATE slack_installations SET bot_token = 'aa:bb:cc'")
	require.NoError(t, err)

	_, err = s.Fetch(ctx, InstallationQuery{TeamID: "T1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestInstallationStore_List(t *testing.T) {
	s, _ := newInstallationStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, sampleInstallation("T2", "xoxb-2")))
	require.NoError(t, s.Store(ctx, &Installation{TeamID: "T1", User: &UserCredentials{Token: "xoxp", ID: "U"}}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "T1", list[0].TeamID)
	assert.False(t, list[0].HasBotToken)
	assert.True(t, list[0].HasUserToken)

	assert.Equal(t, "T2", list[1].TeamID)
	assert.True(t, list[1].HasBotToken)
	assert.False(t, list[1].HasUserToken)
	assert.Equal(t, "UB1", list[1].BotUserID)
}
