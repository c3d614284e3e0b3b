// Package credentials holds the Telldus Live consumer keys and access token
// and persists them as YAML.
package credentials

import (
	"fmt"
	"strings"

	"github.com/telltales/telltales-cli/logging"
)

// Credentials are the consumer key pair plus the (possibly empty) access token pair.
type Credentials struct {
	PublicKey   string `yaml:"public_key"`
	PrivateKey  string `yaml:"private_key"`
	Token       string `yaml:"token"`
	TokenSecret string `yaml:"token_secret"`
}

// MissingFields names the consumer key fields that are blank.
func (c Credentials) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.PublicKey) == "" {
		missing = append(missing, "public_key")
	}
	if strings.TrimSpace(c.PrivateKey) == "" {
		missing = append(missing, "private_key")
	}
	return missing
}

// IsComplete reports whether both consumer keys are present.
func (c Credentials) IsComplete() bool {
	return len(c.MissingFields()) == 0
}

// HasToken reports whether both halves of the access token pair are present.
func (c Credentials) HasToken() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.TokenSecret) != ""
}

// WithToken returns a copy carrying the given access token pair.
func (c Credentials) WithToken(token, secret string) Credentials {
	c.Token = token
	c.TokenSecret = secret
	return c
}

// String hides secrets when credentials end up in logs.
func (c Credentials) String() string {
	return fmt.Sprintf("public_key [%s] private_key [%s] token [%s] token_secret [%s]",
		c.PublicKey, logging.Redact(c.PrivateKey), logging.Redact(c.Token), logging.Redact(c.TokenSecret))
}
