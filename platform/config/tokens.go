package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultIntegration is the integration name given to CRM_WEBHOOK_SECRET.
const DefaultIntegration = "bookme"

// IntegrationToken is a webhook credential scoped to one calling integration.
// Disabled tokens are revoked without affecting the others.
type IntegrationToken struct {
	Name     string `yaml:"name"`
	Token    string `yaml:"token"`
	Disabled bool   `yaml:"disabled"`
}

type tokenFile struct {
	Integrations []IntegrationToken `yaml:"integrations"`
}

// LoadIntegrationTokens reads the integration token table from a YAML file.
func LoadIntegrationTokens(path string) ([]IntegrationToken, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read webhook tokens file: %w", err)
	}

	var file tokenFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse webhook tokens file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Integrations))
	for i, entry := range file.Integrations {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("webhook tokens file: entry %d has no name", i)
		}
		if strings.TrimSpace(entry.Token) == "" && !entry.Disabled {
			return nil, fmt.Errorf("webhook tokens file: integration %q has no token", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("webhook tokens file: integration %q listed twice", name)
		}
		seen[name] = struct{}{}
		file.Integrations[i].Name = name
	}

	return file.Integrations, nil
}

// webhookTokens merges CRM_WEBHOOK_SECRET with the token table and drops disabled entries.
func webhookTokens(secret, path string) ([]IntegrationToken, error) {
	tokens := make([]IntegrationToken, 0, 1)
	if strings.TrimSpace(secret) != "" {
		tokens = append(tokens, IntegrationToken{Name: DefaultIntegration, Token: secret})
	}

	if strings.TrimSpace(path) == "" {
		return tokens, nil
	}

	entries, err := LoadIntegrationTokens(path)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Disabled {
			continue
		}
		tokens = append(tokens, entry)
	}
	return tokens, nil
}
