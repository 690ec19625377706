package oauth

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/Masterminds/sprig/v3"

	"credbroker/pkg/logging"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f4f5f7; color: #1d1c1d; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
        .card { background: #fff; border-radius: 12px; padding: 2.5rem; max-width: 460px; text-align: center; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
        .icon { font-size: 2.5rem; color: {{ if .Success }}#2eb67d{{ else }}#e01e5a{{ end }}; }
        p { color: #616061; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="card">
        <div class="icon">{{ if .Success }}&#10003;{{ else }}&#10005;{{ end }}</div>
        <h1>{{ .Title }}</h1>
        <p>{{ .Message }}</p>
        {{- with .Detail }}
        <p><small>{{ . | trunc 120 }}</small></p>
        {{- end }}
        <p>You can close this window and return to {{ .Provider | default "Slack" | title }}.</p>
    </div>
</body>
</html>
`

var pages = template.Must(template.New("page").Funcs(sprig.FuncMap()).Parse(pageTemplate))

type pageData struct {
	Title    string
	Message  string
	Detail   string
	Provider string
	Success  bool
}

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

func renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pages.Execute(&buf, data); err != nil {
		logging.Error("Server", err, "Failed to render page")
		http.Error(w, data.Message, status)
		return
	}

	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
