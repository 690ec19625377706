package oauth

import (
	"errors"
	"net/http"

	"credbroker/internal/crypto"
	"credbroker/internal/metrics"
	"credbroker/internal/state"
	"credbroker/pkg/logging"
)

const (
	msgStateInvalid   = "This authorization link has expired or is invalid. Please start again from Slack."
	msgProviderFailed = "The provider could not complete the authorization. Please try again."
	msgInternal       = "Something went wrong while saving your authorization. Please try again later."
	msgMissingParams  = "Invalid callback: missing required parameters."
)

// Handler serves the browser facing OAuth endpoints. Either flow may be nil,
// in which case its endpoints answer 404.
type Handler struct {
	google  *GoogleExchanger
	slack   *SlackInstaller
	metrics *metrics.Metrics
}

// NewHandler creates a new OAuth HTTP handler.
func NewHandler(google *GoogleExchanger, slack *SlackInstaller, m *metrics.Metrics) *Handler {
	return &Handler{google: google, slack: slack, metrics: m}
}

// GoogleStart redirects the browser to Google's consent screen.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	h.redirect(w, r, "google", func() (string, error) {
		return h.google.AuthorizationURL(q.Get("workspace_id"), q.Get("user_id"))
	})
}

// GoogleCallback completes the Google authorization.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}
	h.callback(w, r, "google", func(code, st string) error {
		_, err := h.google.HandleCallback(r.Context(), code, st)
		return err
	})
}

// SlackInstall redirects the browser to Slack's install screen.
func (h *Handler) SlackInstall(w http.ResponseWriter, r *http.Request) {
	if h.slack == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	h.redirect(w, r, "slack", func() (string, error) {
		return h.slack.InstallURL(q.Get("team_id"), q.Get("user_id"))
	})
}

// SlackCallback completes the Slack installation.
func (h *Handler) SlackCallback(w http.ResponseWriter, r *http.Request) {
	if h.slack == nil {
		http.NotFound(w, r)
		return
	}
	h.callback(w, r, "slack", func(code, st string) error {
		_, err := h.slack.HandleCallback(r.Context(), code, st)
		return err
	})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, provider string, build func() (string, error)) {
	target, err := build()
	if errors.Is(err, state.ErrMissingFields) {
		renderPage(w, http.StatusBadRequest, pageData{Title: "Authorization Failed", Message: msgMissingParams, Provider: provider})
		return
	}
	if err != nil {
		logging.Error("OAuth", err, "Failed to build %s authorization URL", provider)
		renderPage(w, http.StatusInternalServerError, pageData{Title: "Authorization Failed", Message: msgInternal, Provider: provider})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request, provider string, complete func(code, state string) error) {
	q := r.URL.Query()
	code, st := q.Get("code"), q.Get("state")

	if errParam := q.Get("error"); errParam != "" {
		logging.Warn("OAuth", "%s callback received error: %s", provider, errParam)
		h.metrics.Callback(provider, metrics.ResultProviderError)
		renderPage(w, http.StatusBadRequest, pageData{
			Title:    "Authorization Cancelled",
			Message:  "The authorization was not granted.",
			Detail:   errParam,
			Provider: provider,
		})
		return
	}

	if code == "" || st == "" {
		logging.Warn("OAuth", "%s callback missing code or state parameter", provider)
		h.metrics.Callback(provider, metrics.ResultStateError)
		renderPage(w, http.StatusBadRequest, pageData{Title: "Authorization Failed", Message: msgMissingParams, Provider: provider})
		return
	}

	err := complete(code, st)
	status, result, message := classify(err)

	if result == metrics.ResultStateError {
		h.metrics.StateVerified(metrics.ResultStateError)
	} else {
		h.metrics.StateVerified(metrics.ResultSuccess)
	}
	h.metrics.Callback(provider, result)

	switch {
	case err == nil:
		renderPage(w, http.StatusOK, pageData{
			Title:    "Authorization Successful",
			Message:  "Your account is now connected.",
			Provider: provider,
			Success:  true,
		})
		return
	case errors.Is(err, crypto.ErrCrypto):
		h.metrics.CryptoFailure()
		logging.Audit("OAuth", err, "Crypto failure while completing %s authorization", provider)
	case status == http.StatusInternalServerError:
		logging.Error("OAuth", err, "Failed to complete %s authorization", provider)
	default:
		logging.Warn("OAuth", "%s authorization rejected: %v", provider, err)
	}

	renderPage(w, status, pageData{Title: "Authorization Failed", Message: message, Provider: provider})
}

// classify maps a callback error to an HTTP status, a metrics result and a
// user facing message. Internal details never reach the page.
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusOK, metrics.ResultSuccess, ""
	case state.IsStateError(err), errors.Is(err, ErrTeamMismatch):
		return http.StatusBadRequest, metrics.ResultStateError, msgStateInvalid
	case IsProviderError(err), errors.Is(err, ErrNoAccessToken):
		return http.StatusBadGateway, metrics.ResultProviderError, msgProviderFailed
	default:
		return http.StatusInternalServerError, metrics.ResultError, msgInternal
	}
}
