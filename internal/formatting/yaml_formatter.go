package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"credbroker/internal/store"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

func (f *YAMLFormatter) FormatInstallations(installations []store.InstallationSummary) error {
	return f.encode(map[string]interface{}{
		"installations": installationViews(installations),
		"count":         len(installations),
	})
}

func (f *YAMLFormatter) FormatToken(token TokenView) error {
	return f.encode(token)
}

func (f *YAMLFormatter) encode(v interface{}) error {
	enc := yaml.NewEncoder(f.options.Output)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	return enc.Close()
}
