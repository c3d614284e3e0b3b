package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinePrompter_Prompt(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		allowEmpty bool
		want       string
		wantErr    error
		reprompts  int
	}{
		{
			name:  "single line",
			input: "abc123\n",
			want:  "abc123",
		},
		{
			name:  "trims whitespace",
			input: "  abc123 \r\n",
			want:  "abc123",
		},
		{
			name:      "blank lines are rejected",
			input:     "\n   \nxyz\n",
			want:      "xyz",
			reprompts: 2,
		},
		{
			name:       "blank allowed",
			input:      "\n",
			allowEmpty: true,
			want:       "",
		},
		{
			name:  "last line without newline",
			input: "tail",
			want:  "tail",
		},
		{
			name:    "eof before any value",
			input:   "\n",
			wantErr: ErrNoInput,
		},
		{
			name:       "eof with empty allowed still fails",
			input:      "",
			allowEmpty: true,
			wantErr:    ErrNoInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewLinePrompter(strings.NewReader(tt.input), &out)

			got, err := p.Prompt(context.Background(), "Verification code", tt.allowEmpty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reprompts, strings.Count(out.String(), "A value is required."))
			assert.Contains(t, out.String(), "Verification code: ")
		})
	}
}

func TestLinePrompter_SecretWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("s3cret\n"), &out)

	got, err := p.PromptSecret(context.Background(), "Private API key", false)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestLinePrompter_SequentialQuestions(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("first\nsecond\n"), &out)

	a, err := p.Prompt(context.Background(), "A", false)
	require.NoError(t, err)
	b, err := p.Prompt(context.Background(), "B", false)
	require.NoError(t, err)

	assert.Equal(t, "first", a)
	assert.Equal(t, "second", b)
}

func TestLinePrompter_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	p := NewLinePrompter(pr, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Prompt(ctx, "Verification code", false)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return after cancellation")
	}
}

func TestLinePrompter_AbandonedLineGoesToNextPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	p := NewLinePrompter(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Prompt(ctx, "A", false)
	require.ErrorIs(t, err, context.Canceled)

	go func() {
		_, _ = io.WriteString(pw, "late\n")
	}()

	got, err := p.Prompt(context.Background(), "B", false)
	require.NoError(t, err)
	assert.Equal(t, "late", got)
}

func TestProgramPrompter_SharesInput(t *testing.T) {
	lines := NewLinePrompter(strings.NewReader("first\nsecond\n"), io.Discard)
	a, err := lines.Prompt(context.Background(), "A", false)
	require.NoError(t, err)

	b, err := NewProgramPrompter(nil, lines).lines.Prompt(context.Background(), "B", false)
	require.NoError(t, err)

	assert.Equal(t, "first", a)
	assert.Equal(t, "second", b)
}
