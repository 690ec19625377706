package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"credbroker/internal/oauth"
	"credbroker/internal/store"
)

var testInstallations = []store.InstallationSummary{
	{TeamID: "T1", TeamName: "Acme", BotUserID: "UB1", HasBotToken: true, InstalledAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	{EnterpriseID: "E1", HasUserToken: true, InstalledAt: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestTableInstallations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable, Output: &buf}).FormatInstallations(testInstallations))

	out := buf.String()
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "E1")
	assert.Contains(t, out, "2026-03-01 10:00")
	assert.Contains(t, out, "installations")
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Output: &buf}).FormatInstallations(nil))
	assert.Contains(t, buf.String(), "No installations found")
}

func TestJSONInstallations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON, Output: &buf}).FormatInstallations(testInstallations))

	var out struct {
		Installations []map[string]any `json:"installations"`
		Count         int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "T1", out.Installations[0]["teamId"])
	assert.Equal(t, true, out.Installations[0]["hasBotToken"])
	assert.Equal(t, "E1", out.Installations[1]["enterpriseId"])
}

func TestTokenNeverPrinted(t *testing.T) {
	view := TokenView{
		WorkspaceID: "W1",
		UserID:      "U1",
		AccessToken: oauth.NewRedactedToken("ya29.secret-access"),
		Expiry:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	for _, format := range []OutputFormat{FormatTable, FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, New(Options{Format: format, Output: &buf}).FormatToken(view))
			assert.NotContains(t, buf.String(), "secret-access")
			assert.Contains(t, buf.String(), "[REDACTED]")
			assert.Contains(t, buf.String(), "W1")
		})
	}
}

func TestYAMLInstallations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatYAML, Output: &buf}).FormatInstallations(testInstallations[:1]))

	var out map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 1, out["count"])
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"name\": \"test\"\n}", PrettyJSON(map[string]string{"name": "test"}))
	assert.Equal(t, "null", PrettyJSON(nil))
	assert.Equal(t, "true", PrettyJSON(true))
}
