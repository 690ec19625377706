// Package secrets loads the key material credbroker needs at startup: the
// at-rest encryption key, the state signing secret and the OAuth client
// secrets. Material is read once and passed explicitly to the components
// that use it.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"

	"credbroker/internal/config"
	"credbroker/internal/crypto"
	"credbroker/pkg/logging"
)

// Keys used in a Kubernetes Secret.
const (
	KeyEncryptionKey      = "encryption-key"
	KeyStateSecret        = "state-secret"
	KeyGoogleClientSecret = "google-client-secret"
	KeySlackClientSecret  = "slack-client-secret"
)

// Material is the decoded secret material.
type Material struct {
	EncryptionKey      []byte
	StateSecret        []byte
	GoogleClientSecret string
	SlackClientSecret  string
}

// envMaterial is read with the CREDBROKER prefix, so ENCRYPTION_KEY is
// looked up as CREDBROKER_ENCRYPTION_KEY first and ENCRYPTION_KEY second.
type envMaterial struct {
	EncryptionKey      string `envconfig:"ENCRYPTION_KEY"`
	StateSecret        string `envconfig:"STATE_SECRET"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	SlackClientSecret  string `envconfig:"SLACK_CLIENT_SECRET"`
}

// Load reads secret material from the configured source.
func Load(ctx context.Context, cfg config.SecretsConfig) (*Material, error) {
	switch cfg.Source {
	case config.SecretsSourceEnv, "":
		return FromEnv()
	case config.SecretsSourceKubernetes:
		c, err := NewKubernetesClient(cfg.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return FromKubernetes(ctx, c, cfg.Namespace, cfg.Name)
	default:
		return nil, fmt.Errorf("unknown secrets source %q", cfg.Source)
	}
}

// FromEnv reads secret material from environment variables.
func FromEnv() (*Material, error) {
	var env envMaterial
	if err := envconfig.Process(config.EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("reading secrets from environment: %w", err)
	}

	m, err := decode(env.EncryptionKey, env.StateSecret, env.GoogleClientSecret, env.SlackClientSecret)
	if err != nil {
		return nil, err
	}
	logging.Info("Secrets", "Loaded secret material from environment")
	return m, nil
}

func decode(encryptionKey, stateSecret, googleSecret, slackSecret string) (*Material, error) {
	var result *multierror.Error

	key, err := crypto.ParseKey(encryptionKey)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("encryption key: %w", err))
	}
	if stateSecret == "" {
		result = multierror.Append(result, errors.New("state secret is empty"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Material{
		EncryptionKey:      key,
		StateSecret:        []byte(stateSecret),
		GoogleClientSecret: googleSecret,
		SlackClientSecret:  slackSecret,
	}, nil
}
