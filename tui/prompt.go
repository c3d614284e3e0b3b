package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNoInput is returned when stdin is closed before a value was entered.
var ErrNoInput = errors.New("no input available")

// Prompter reads single-line answers from the user.
// With allowEmpty false, blank lines are rejected and the question is asked again.
// A cancelled ctx abandons the question and returns ctx.Err().
type Prompter interface {
	Prompt(ctx context.Context, label string, allowEmpty bool) (string, error)
	PromptSecret(ctx context.Context, label string, allowEmpty bool) (string, error)
}

type readResult struct {
	line string
	err  error
}

// lineSource owns the buffered stdin. A read abandoned by a cancelled prompt
// stays pending and its line goes to the next prompt, so no input is lost.
type lineSource struct {
	in      *bufio.Reader
	fd      int // terminal fd for hidden input, -1 when in is not a terminal
	pending chan readResult
}

func (s *lineSource) read(ctx context.Context, read func() (string, error)) (string, error) {
	if s.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := read()
			ch <- readResult{line: line, err: err}
		}()
		s.pending = ch
	}

	select {
	case res := <-s.pending:
		s.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *lineSource) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, ErrNoInput
		}
		return line, errors.Wrap(err, "reading input")
	}
	return line, nil
}

func (s *lineSource) readHidden() (string, error) {
	b, err := term.ReadPassword(s.fd)
	if err != nil {
		return "", errors.Wrap(err, "reading hidden input")
	}
	return string(b), nil
}

// LinePrompter asks questions on out and reads answers from in. It is not
// safe for concurrent use.
type LinePrompter struct {
	src *lineSource
	out io.Writer
}

// NewLinePrompter creates a LinePrompter. Secrets are read without echo
// when in is a terminal.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	src := &lineSource{in: bufio.NewReader(in), fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		src.fd = int(f.Fd())
	}
	return &LinePrompter{src: src, out: out}
}

func (p *LinePrompter) Prompt(ctx context.Context, label string, allowEmpty bool) (string, error) {
	return p.ask(ctx, label, allowEmpty, p.src.readLine)
}

func (p *LinePrompter) PromptSecret(ctx context.Context, label string, allowEmpty bool) (string, error) {
	if p.src.fd < 0 {
		return p.ask(ctx, label, allowEmpty, p.src.readLine)
	}
	return p.ask(ctx, label, allowEmpty, func() (string, error) {
		s, err := p.src.readHidden()
		fmt.Fprintln(p.out)
		return s, err
	})
}

func (p *LinePrompter) ask(ctx context.Context, label string, allowEmpty bool, read func() (string, error)) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", label)
		value, err := p.src.read(ctx, read)
		if ctxErr := ctx.Err(); ctxErr != nil {
			fmt.Fprintln(p.out)
			return "", ctxErr
		}
		value = strings.TrimSpace(value)
		if value != "" || (allowEmpty && err == nil) {
			return value, nil
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintln(p.out, "A value is required.")
	}
}

// ProgramPrompter shows the question inside a running BubbleTea program
// and reads the answer from stdin, which the program does not own.
type ProgramPrompter struct {
	p     *tea.Program
	lines *LinePrompter
}

// NewProgramPrompter creates a ProgramPrompter that reads through lines,
// sharing its buffered input. Questions are only rendered by the program.
func NewProgramPrompter(p *tea.Program, lines *LinePrompter) *ProgramPrompter {
	return &ProgramPrompter{p: p, lines: &LinePrompter{src: lines.src, out: io.Discard}}
}

func (t *ProgramPrompter) Prompt(ctx context.Context, label string, allowEmpty bool) (string, error) {
	t.p.Send(MsgPrompt{Label: label})
	defer t.p.Send(MsgPromptAnswered{})
	return t.lines.Prompt(ctx, label, allowEmpty)
}

func (t *ProgramPrompter) PromptSecret(ctx context.Context, label string, allowEmpty bool) (string, error) {
	t.p.Send(MsgPrompt{Label: label})
	defer t.p.Send(MsgPromptAnswered{})
	return t.lines.PromptSecret(ctx, label, allowEmpty)
}
