package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"credbroker/internal/crypto"
	"credbroker/internal/state"
	"credbroker/internal/store"
)

type testEnv struct {
	db     *store.DB
	cipher *crypto.Cipher
	codec  *state.Codec
	google *store.GoogleIntegrations
	slack  *store.InstallationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "oauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw, err := crypto.ParseKey(key)
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(raw)
	require.NoError(t, err)

	codec, err := state.NewCodec([]byte("oauth-test-secret"))
	require.NoError(t, err)

	return &testEnv{
		db:     db,
		cipher: cipher,
		codec:  codec,
		google: store.NewGoogleIntegrations(db, cipher),
		slack:  store.NewInstallationStore(db, cipher),
	}
}

// fakeGoogle is a stand-in for Google's token and revocation endpoints.
type fakeGoogle struct {
	server *httptest.Server

	mu           sync.Mutex
	tokenStatus  int
	tokenBody    map[string]any
	tokenForms   []url.Values
	revokeStatus int
	revoked      []string

	// When tokenGate is set the token endpoint reports each request on
	// tokenEntered and blocks until the gate is closed.
	tokenGate    chan struct{}
	tokenEntered chan struct{}
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "A1",
			"refresh_token": "R1",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"scope":         "https://www.googleapis.com/auth/spreadsheets",
		},
		revokeStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokenForms = append(f.tokenForms, r.PostForm)
		status, body := f.tokenStatus, f.tokenBody
		gate, entered := f.tokenGate, f.tokenEntered
		f.mu.Unlock()

		if gate != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-gate
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.revoked = append(f.revoked, r.PostForm.Get("token"))
		status := f.revokeStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) setToken(status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus, f.tokenBody = status, body
}

func (f *fakeGoogle) holdTokenRequests() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.tokenGate, f.tokenEntered = gate, make(chan struct{}, 1)
	return f.tokenEntered, func() { close(gate) }
}

func (f *fakeGoogle) tokenCalls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenForms...)
}

func (f *fakeGoogle) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func (f *fakeGoogle) config() GoogleConfig {
	return GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://broker.example.com/oauth/google/callback",
		AuthURL:      f.server.URL + "/auth",
		TokenURL:     f.server.URL + "/token",
		RevokeURL:    f.server.URL + "/revoke",
	}
}

func seedIntegration(t *testing.T, env *testEnv, access, refresh string, expiry time.Time) {
	t.Helper()
	require.NoError(t, env.google.Upsert(context.Background(), &store.GoogleIntegration{
		WorkspaceID:  "W1",
		UserID:       "U1",
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       expiry,
	}))
}
