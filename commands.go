package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/telltales/telltales-cli/auth"
	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/logging"
	"github.com/telltales/telltales-cli/telldus"
	"github.com/telltales/telltales-cli/tui"
	"github.com/telltales/telltales-cli/version"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "telltales",
		Short:         "Telldus Live CLI",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(a.v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doValidate(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.String("credentials", "", "credentials file (default ~/.config/telltales/credentials.yaml)")
	flags.String("base-url", auth.DefaultBaseURL, "Telldus Live API base URL")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("plain", false, "plain text output even on a terminal")
	flags.Duration("callback-timeout", auth.DefaultCallbackTimeout, "how long to wait for the browser redirect before asking for the code, eg. 5m or 90s")

	errPanic(a.v.BindPFlag("credentials.file", flags.Lookup("credentials")))
	errPanic(a.v.BindPFlag("api.base-url", flags.Lookup("base-url")))
	errPanic(a.v.BindPFlag("debug", flags.Lookup("debug")))
	errPanic(a.v.BindPFlag("ui.plain", flags.Lookup("plain")))
	errPanic(a.v.BindPFlag("auth.callback-timeout", flags.Lookup("callback-timeout")))

	root.AddCommand(newAuthCmd(a), newDevicesCmd(a), newSensorsCmd(a), newVersionCmd(a))
	return root
}

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Telldus Live authentication",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doValidate(cmd.Context())
		},
	}
	authCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Ensure credentials are present and valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doValidate(cmd.Context())
		},
	})
	return authCmd
}

func newDevicesCmd(a *app) *cobra.Command {
	var kind string

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Interact with Telldus Live devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doList(cmd.Context(), telldus.KindAll)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List Telldus Live resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := telldus.ParseKind(kind)
			if err != nil {
				return err
			}
			return a.doList(cmd.Context(), k)
		},
	}
	listCmd.Flags().StringVarP(&kind, "kind", "k", string(telldus.KindAll), "resource category: all, controllers, devices or sensors")

	infoCmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show details of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), func(ctx context.Context, c *telldus.Client) error {
				info, err := c.DeviceInfo(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, info)
				return nil
			})
		},
	}

	onCmd := &cobra.Command{
		Use:   "on <id>",
		Short: "Turn a device on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doCommand(cmd.Context(), "on", args[0], func(ctx context.Context, c *telldus.Client) error {
				return c.TurnOn(ctx, args[0])
			})
		},
	}

	offCmd := &cobra.Command{
		Use:   "off <id>",
		Short: "Turn a device off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doCommand(cmd.Context(), "off", args[0], func(ctx context.Context, c *telldus.Client) error {
				return c.TurnOff(ctx, args[0])
			})
		},
	}

	dimCmd := &cobra.Command{
		Use:   "dim <id> <level>",
		Short: "Dim a device to a level between 0 and 255",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[1])
			if err != nil || level < 0 || level > 255 {
				return errors.Errorf("level must be a number between 0 and 255, got %q", args[1])
			}
			return a.doCommand(cmd.Context(), "dimmed to "+args[1], args[0], func(ctx context.Context, c *telldus.Client) error {
				return c.Dim(ctx, args[0], level)
			})
		},
	}

	devicesCmd.AddCommand(listCmd, infoCmd, onCmd, offCmd, dimCmd)
	return devicesCmd
}

func newSensorsCmd(a *app) *cobra.Command {
	sensorsCmd := &cobra.Command{
		Use:   "sensors",
		Short: "Inspect Telldus Live sensors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doList(cmd.Context(), telldus.KindSensors)
		},
	}
	sensorsCmd.AddCommand(&cobra.Command{
		Use:   "info <id>",
		Short: "Show details and latest values of a sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), func(ctx context.Context, c *telldus.Client) error {
				info, err := c.SensorInfo(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, info)
				return nil
			})
		},
	})
	return sensorsCmd
}

type versionResult struct {
	Version string `json:"version"`
}

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version number of the tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				fmt.Fprintf(a.out, "telltales version %s\n", version.Version)
				return nil
			}

			b, err := json.MarshalIndent(versionResult{Version: version.Version}, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(b))
			return nil
		},
	}
	versionCmd.Flags().BoolVar(&asJSON, "json", false, "Return version as JSON")
	return versionCmd
}

// authenticate completes missing consumer keys, validates the access token
// and persists a refreshed one. The returned credentials are ready for API calls.
func (a *app) authenticate(ctx context.Context) (appConfig, credentials.Credentials, error) {
	cfg, err := loadConfig(a.v, a.errOut)
	if err != nil {
		return cfg, credentials.Credentials{}, err
	}

	store, err := credentials.NewStore(cfg.CredentialsFile)
	if err != nil {
		return cfg, credentials.Credentials{}, err
	}
	creds, err := credentials.Ensure(ctx, store, a.lines, a.errOut)
	if err != nil {
		return cfg, credentials.Credentials{}, err
	}

	var outcome auth.Outcome
	err = a.withDisplay(cfg, func(d tui.Displayer, p tui.Prompter) error {
		d.CredentialsFile(store.Path())

		authenticator := auth.New(auth.Config{
			BaseURL:         cfg.BaseURL,
			HTTPClient:      newHTTPClient(cfg.Timeout),
			Displayer:       d,
			Prompter:        p,
			CallbackTimeout: cfg.CallbackTimeout,
		})

		var err error
		outcome, err = authenticator.Validate(ctx, creds)
		if err != nil {
			return err
		}

		if outcome.TokensRefreshed {
			if err := store.Save(outcome.Credentials); err != nil {
				d.TokenSaveFailed(err)
				return err
			}
			d.TokenSaved(store.Path())
		}

		d.Done(outcome.AccountName, outcome.TokensRefreshed)
		return nil
	})
	if err != nil {
		return cfg, credentials.Credentials{}, err
	}

	logging.Logger(ctx).Debugf("authenticated: %s", outcome.Credentials)
	return cfg, outcome.Credentials, nil
}

func (a *app) doValidate(ctx context.Context) error {
	_, _, err := a.authenticate(ctx)
	return err
}

// withAPI authenticates and hands a ready API client to fn.
func (a *app) withAPI(ctx context.Context, fn func(context.Context, *telldus.Client) error) error {
	cfg, creds, err := a.authenticate(ctx)
	if err != nil {
		return err
	}

	client, err := telldus.NewClient(
		cfg.BaseURL,
		newHTTPClient(cfg.Timeout),
		creds,
		telldus.WithRateLimiter(rateLimiterFor(cfg.MinInterval)),
	)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}

func (a *app) doList(ctx context.Context, kind telldus.Kind) error {
	return a.withAPI(ctx, func(ctx context.Context, c *telldus.Client) error {
		entries, err := c.List(ctx, kind)
		if err != nil {
			return err
		}
		telldus.SortEntries(entries)
		return printEntries(a.out, entries)
	})
}

func (a *app) doCommand(ctx context.Context, verb, id string, fn func(context.Context, *telldus.Client) error) error {
	return a.withAPI(ctx, func(ctx context.Context, c *telldus.Client) error {
		if err := fn(ctx, c); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Device %s %s.\n", id, verb)
		return nil
	})
}

// printEntries writes entries as a TYPE / ID / NAME / DETAILS table.
func printEntries(w io.Writer, entries []telldus.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No resources returned for the selected filter.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tNAME\tDETAILS")
	for _, e := range entries {
		details := e.Details
		if details == "" {
			details = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Category, e.ID, e.Name, details)
	}
	return tw.Flush()
}
