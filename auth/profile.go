package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	retry "github.com/appleboy/go-httpretry"
	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/logging"
)

// VerifyProfile checks the access token in creds against the profile
// endpoint and returns the account's display name, which may be empty.
// A 401 answer yields ErrUnauthorized.
func (a *Authenticator) VerifyProfile(ctx context.Context, creds credentials.Credentials) (string, error) {
	client, err := retry.NewClient(retry.WithHTTPClient(SignedClient(a.httpClient, creds)))
	if err != nil {
		return "", errors.Wrap(err, "failed to create retry client")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoints.Profile, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create profile request")
	}

	logging.Logger(ctx).Debugf("GET %s", a.endpoints.Profile)
	resp, err := client.DoWithContext(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "profile request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read profile response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPStatusError(http.MethodGet, a.endpoints.Profile, resp.StatusCode, body)
	}

	return parseProfile(body)
}

func parseProfile(body []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "failed to parse profile response")
	}

	status, ok := payload["status"].(string)
	if !ok {
		status = "unknown"
	}
	if status != "success" {
		return "", &VerificationFailedError{Reason: status}
	}

	user, ok := payload["user"].(map[string]any)
	if !ok {
		return "", nil
	}
	return composeAccountName(user), nil
}

// composeAccountName joins first and last name, falling back to username.
// Non-string values are ignored.
func composeAccountName(user map[string]any) string {
	var parts []string
	for _, key := range []string{"firstname", "lastname"} {
		if s, ok := user[key].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	username, _ := user["username"].(string)
	return username
}
