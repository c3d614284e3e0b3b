package credentials

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/tui"
)

// Ensure loads the stored credentials and, when a consumer key is missing,
// asks for it and saves the result. The access token is never prompted for;
// it is obtained through the OAuth flow.
func Ensure(ctx context.Context, store *Store, prompter tui.Prompter, out io.Writer) (Credentials, error) {
	creds, _, err := store.Load()
	if err != nil {
		return creds, err
	}
	if creds.IsComplete() {
		return creds, nil
	}

	fmt.Fprintf(out, "Telldus Live credentials are required. Values are stored in %s.\n", store.Path())

	creds.PublicKey, err = promptField(ctx, prompter, out, "Public API key", creds.PublicKey, false)
	if err != nil {
		return creds, err
	}
	creds.PrivateKey, err = promptField(ctx, prompter, out, "Private API key", creds.PrivateKey, true)
	if err != nil {
		return creds, err
	}

	if creds.HasToken() {
		fmt.Fprintln(out, "Existing OAuth access token details detected; leaving untouched.")
	} else {
		fmt.Fprintln(out, "OAuth access token details are optional and will be obtained through the OAuth flow.")
	}

	if err := store.Save(creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func promptField(ctx context.Context, prompter tui.Prompter, out io.Writer, label, current string, secret bool) (string, error) {
	keep := strings.TrimSpace(current) != ""
	if keep {
		fmt.Fprintf(out, "%s already present; leave blank to keep.\n", label)
	}

	var (
		value string
		err   error
	)
	if secret {
		value, err = prompter.PromptSecret(ctx, label, keep)
	} else {
		value, err = prompter.Prompt(ctx, label, keep)
	}
	if err != nil {
		return "", errors.Wrapf(err, "prompting for %s", strings.ToLower(label))
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return current, nil
	}
	return value, nil
}
