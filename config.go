package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/telltales/telltales-cli/auth"
	"github.com/telltales/telltales-cli/telldus"
)

const envPrefix = "TELLTALES"

// appConfig is the resolved configuration. Priority: flag > env > .env > default.
type appConfig struct {
	CredentialsFile string
	BaseURL         string
	Timeout         time.Duration
	MinInterval     time.Duration
	CallbackTimeout time.Duration
	Plain           bool
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("credentials.file", "")
	v.SetDefault("api.base-url", auth.DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.min-interval", telldus.MinRequestInterval)
	v.SetDefault("auth.callback-timeout", auth.DefaultCallbackTimeout)
	v.SetDefault("ui.plain", false)
	v.SetDefault("logging.location", "stderr")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "warn")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// loadConfig reads and validates the configuration. A plaintext base URL
// produces a warning on warn.
func loadConfig(v *viper.Viper, warn io.Writer) (appConfig, error) {
	cfg := appConfig{
		CredentialsFile: v.GetString("credentials.file"),
		BaseURL:         strings.TrimRight(v.GetString("api.base-url"), "/"),
		Timeout:         v.GetDuration("api.timeout"),
		MinInterval:     v.GetDuration("api.min-interval"),
		CallbackTimeout: v.GetDuration("auth.callback-timeout"),
		Plain:           v.GetBool("ui.plain"),
	}

	if err := validateServerURL(cfg.BaseURL); err != nil {
		return cfg, errors.Wrap(err, "invalid api.base-url")
	}
	if cfg.CallbackTimeout <= 0 {
		return cfg, errors.Errorf("auth.callback-timeout must be positive, got %s", cfg.CallbackTimeout)
	}
	if cfg.Timeout <= 0 {
		return cfg, errors.Errorf("api.timeout must be positive, got %s", cfg.Timeout)
	}

	if strings.HasPrefix(strings.ToLower(cfg.BaseURL), "http://") {
		fmt.Fprintln(warn, "WARNING: Using HTTP instead of HTTPS. OAuth signatures and tokens will be transmitted in plaintext!")
		fmt.Fprintln(warn)
	}

	return cfg, nil
}

// validateServerURL checks that rawURL is an absolute http(s) URL.
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// rateLimiterFor shares telldus.DefaultRateLimiter unless a different spacing is configured.
func rateLimiterFor(interval time.Duration) *telldus.RateLimiter {
	if interval == telldus.MinRequestInterval {
		return telldus.DefaultRateLimiter
	}
	return telldus.NewRateLimiter(interval)
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}
