package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credentials hold the datafeed login. The username must be a phone number,
// custody code or email registered with the provider.
type Credentials struct {
	Username string `yaml:"usr"`
	Password string `yaml:"pwd"`
}

// LoadCredentials reads a yaml credentials file with `usr` and `pwd` keys.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if strings.TrimSpace(creds.Username) == "" {
		return Credentials{}, fmt.Errorf("credentials file %s is missing 'usr'", path)
	}
	if strings.TrimSpace(creds.Password) == "" {
		return Credentials{}, fmt.Errorf("credentials file %s is missing 'pwd'", path)
	}

	return creds, nil
}
