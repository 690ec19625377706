package formatting

import (
	"fmt"

	"credbroker/internal/store"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

func (f *JSONFormatter) FormatInstallations(installations []store.InstallationSummary) error {
	_, err := fmt.Fprintln(f.options.Output, PrettyJSON(map[string]interface{}{
		"installations": installationViews(installations),
		"count":         len(installations),
	}))
	return err
}

func (f *JSONFormatter) FormatToken(token TokenView) error {
	_, err := fmt.Fprintln(f.options.Output, PrettyJSON(token))
	return err
}
