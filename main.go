package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/telltales/telltales-cli/tui"
)

// app carries the streams and configuration shared by all commands.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	tty    bool
	lines  *tui.LinePrompter
}

func newApp(in io.Reader, out, errOut io.Writer, tty bool) *app {
	return &app{
		v:      newViper(),
		out:    out,
		errOut: errOut,
		tty:    tty,
		lines:  tui.NewLinePrompter(in, errOut),
	}
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp(os.Stdin, os.Stdout, os.Stderr, isTTY())
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDisplay runs fn with the BubbleTea displayer on a terminal and the
// plain one otherwise.
func (a *app) withDisplay(cfg appConfig, fn func(tui.Displayer, tui.Prompter) error) error {
	if cfg.Plain || !a.tty {
		d := tui.NewPlainDisplayer(a.errOut)
		d.Banner()
		return fn(d, a.lines)
	}

	// Run TUI program on stderr so stdout pipes are not corrupted.
	// WithInput(nil): stdin stays free for prompts; Ctrl+C is handled by signal.NotifyContext.
	p := tea.NewProgram(tui.NewModel(), tea.WithOutput(a.errOut), tea.WithInput(nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(a.errOut, "TUI error: %v\n", err)
		}
	}()

	d := tui.NewProgramDisplayer(p)
	d.Banner()
	err := fn(d, tui.NewProgramPrompter(p, a.lines))
	if err != nil {
		d.Fatal(err)
	}
	p.Quit() // let BubbleTea drain terminal query responses before exiting
	wg.Wait()
	return err
}
