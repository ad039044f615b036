package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tabletalk/tabletalk/internal/model"
)

// plainTextInstruction is sent ahead of the history because the terminal
// renders answers verbatim.
const plainTextInstruction = "All responses must be in plaintext format only. Do not use any markdown, " +
	"HTML, or other markup languages as the output will be displayed as plain text without any formatting."

func newChatCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running tabletalk server",
		Long: `Start an interactive chat against a tabletalk server. The conversation is
kept here and sent in full with every question.

Commands: /clear resets the conversation, /exit quits.`,
		Example: `  tabletalk chat
  tabletalk chat --url http://analytics:8000 --token $TABLETALK_TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := newChatSession(serverURL, token, timeout, cmd.OutOrStdout())
			if term.IsTerminal(int(os.Stdout.Fd())) {
				session.enableTerminal(int(os.Stdout.Fd()))
			}
			return session.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:8000", "Base URL of the tabletalk server")
	cmd.Flags().StringVar(&token, "token", os.Getenv("TABLETALK_TOKEN"), "Bearer token when the server requires authentication")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Timeout of a single question")

	return cmd
}

// chatSession is the terminal chat client. Failures are shown as System
// lines and never end the session.
type chatSession struct {
	baseURL string
	token   string
	client  *http.Client
	out     io.Writer
	width   uint
	spin    *spinner.Spinner // nil when not attached to a terminal

	history []model.ChatMessage

	you       *color.Color
	assistant *color.Color
	system    *color.Color
}

func newChatSession(baseURL, token string, timeout time.Duration, out io.Writer) *chatSession {
	return &chatSession{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: timeout},
		out:       out,
		width:     80,
		you:       color.New(color.FgGreen, color.Bold),
		assistant: color.New(color.FgCyan, color.Bold),
		system:    color.New(color.FgRed, color.Bold),
	}
}

// enableTerminal wraps to the terminal width and shows a spinner while a
// question is answered.
func (s *chatSession) enableTerminal(fd int) {
	if w, _, err := term.GetSize(fd); err == nil && w > 20 {
		s.width = uint(w)
	}
	s.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.spin.Suffix = " Thinking..."
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.printLine(s.system, "System", "Connected to "+s.baseURL+". Type /clear to reset, /exit to quit.")

	scanner := bufio.NewScanner(in)
	for {
		s.you.Fprint(s.out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			s.history = nil
			s.printLine(s.system, "System", "Conversation cleared.")
			continue
		}

		if s.spin != nil {
			s.spin.Start()
		}
		answer, err := s.ask(ctx, line)
		if s.spin != nil {
			s.spin.Stop()
		}
		if err != nil {
			s.printLine(s.system, "System", s.describeFailure(err))
			continue
		}
		s.printLine(s.assistant, "Assistant", answer)
	}
}

// ask appends question to the history, posts the conversation and records
// the answer. A failed question stays in the history.
func (s *chatSession) ask(ctx context.Context, question string) (string, error) {
	s.history = append(s.history, model.ChatMessage{Role: "user", Content: question})

	messages := make([]model.ChatMessage, 0, len(s.history)+1)
	messages = append(messages, model.ChatMessage{Role: "system", Content: plainTextInstruction})
	messages = append(messages, s.history...)

	body, err := json.Marshal(model.ChatRequest{ConversationHistory: messages})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &connectError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var envelope model.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			return "", &statusError{code: resp.StatusCode, message: envelope.Error.Message}
		}
		return "", &statusError{code: resp.StatusCode, message: strings.TrimSpace(string(data))}
	}

	var out model.ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	s.history = append(s.history, model.ChatMessage{Role: "assistant", Content: out.Answer})
	return out.Answer, nil
}

// connectError means the server could not be reached.
type connectError struct {
	err error
}

func (e *connectError) Error() string { return "connect: " + e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }

// statusError is a non-200 answer of the server.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string { return fmt.Sprintf("%d - %s", e.code, e.message) }

// describeFailure renders a failed question as the System line shown to the
// user.
func (s *chatSession) describeFailure(err error) string {
	var (
		ce *connectError
		se *statusError
	)
	switch {
	case errors.As(err, &ce):
		return "Could not connect to server. Please make sure the server is running on " + s.baseURL
	case errors.As(err, &se):
		return "Error: " + se.Error()
	default:
		return "An error occurred: " + err.Error()
	}
}

func (s *chatSession) printLine(c *color.Color, label, text string) {
	wrapped := wordwrap.WrapString(label+": "+text, s.width)
	c.Fprint(s.out, label+":")
	fmt.Fprint(s.out, strings.TrimPrefix(wrapped, label+":"))
	fmt.Fprint(s.out, "\n\n")
}
