package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/tabletalk/tabletalk/internal/model"
)

func init() {
	color.NoColor = true
}

// fakeChatServer answers every question with the number of messages it saw
// and records the last request.
type fakeChatServer struct {
	last   model.ChatRequest
	auth   string
	status int
}

func (f *fakeChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth = r.Header.Get("Authorization")
	if err := json.NewDecoder(r.Body).Decode(&f.last); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: model.ErrorDetail{Code: f.status, Message: "Model provider error: unavailable"}})
		return
	}
	last := f.last.ConversationHistory[len(f.last.ConversationHistory)-1]
	json.NewEncoder(w).Encode(model.ChatResponse{Answer: "echo " + last.Content})
}

func newTestSession(t *testing.T, fake *fakeChatServer) (*chatSession, *bytes.Buffer) {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	var out bytes.Buffer
	return newChatSession(ts.URL+"/", "tok", 5*time.Second, &out), &out
}

func TestChatSessionConversation(t *testing.T) {
	fake := &fakeChatServer{}
	session, out := newTestSession(t, fake)

	err := session.run(context.Background(), strings.NewReader("show 5 accounts\n\nand the next?\n/exit\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Assistant: echo show 5 accounts", "Assistant: echo and the next?"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	history := fake.last.ConversationHistory
	if len(history) != 4 {
		t.Fatalf("history sent = %d messages, want 4", len(history))
	}
	if history[0].Role != "system" || history[0].Content != plainTextInstruction {
		t.Errorf("first message = %+v, want the plain text instruction", history[0])
	}
	if history[2].Role != "assistant" || history[2].Content != "echo show 5 accounts" {
		t.Errorf("history[2] = %+v", history[2])
	}
	if fake.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", fake.auth)
	}
	if len(session.history) != 4 {
		t.Errorf("client history = %d, want 4", len(session.history))
	}
}

func TestChatSessionClear(t *testing.T) {
	fake := &fakeChatServer{}
	session, out := newTestSession(t, fake)

	if err := session.run(context.Background(), strings.NewReader("first\n/clear\nsecond\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "System: Conversation cleared.") {
		t.Errorf("output missing clear notice:\n%s", out.String())
	}
	// system instruction plus the one question asked after /clear
	if got := len(fake.last.ConversationHistory); got != 2 {
		t.Errorf("history sent after clear = %d, want 2", got)
	}
}

func TestChatSessionServerError(t *testing.T) {
	fake := &fakeChatServer{status: http.StatusBadGateway}
	session, out := newTestSession(t, fake)

	if err := session.run(context.Background(), strings.NewReader("hello\n/exit\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "System: Error: 502 - Model provider error: unavailable"
	if !strings.Contains(out.String(), want) {
		t.Errorf("output missing %q:\n%s", want, out.String())
	}
	if len(session.history) != 1 || session.history[0].Role != "user" {
		t.Errorf("history = %+v, want only the question", session.history)
	}
}

func TestChatSessionUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	var out bytes.Buffer
	session := newChatSession(url, "", time.Second, &out)
	if err := session.run(context.Background(), strings.NewReader("hello\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "System: Could not connect to server") {
		t.Errorf("output missing connection failure:\n%s", out.String())
	}
}

func TestPrintLineWraps(t *testing.T) {
	var out bytes.Buffer
	session := newChatSession("http://localhost:8000", "", time.Second, &out)
	session.width = 20

	session.printLine(session.assistant, "Assistant", "one two three four five six seven")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected wrapped output, got %q", out.String())
	}
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if !strings.HasPrefix(lines[0], "Assistant:") {
		t.Errorf("first line = %q", lines[0])
	}
}
