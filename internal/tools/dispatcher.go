package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/internal/executor"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/query"
)

// Outcome statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// UnknownToolError is reported for calls to a tool that is not published.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string { return "Unknown tool: " + e.Name }

// Runner executes a structured select request.
type Runner interface {
	Run(ctx context.Context, req query.Request) (*executor.Result, error)
}

// Outcome is the result of one dispatched call. Payload is always valid JSON
// and is what the model sees; Err keeps the underlying failure for logs.
type Outcome struct {
	Call      llm.ToolCall
	Payload   string
	Status    string
	Err       error
	Statement string
	Rows      int
	Duration  time.Duration
}

// Dispatcher routes tool calls. Failures never escape as Go errors: they
// become {"error": "..."} payloads the model can react to.
type Dispatcher struct {
	runner Runner
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher executing selectSQL through runner.
func NewDispatcher(runner Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, logger: logger}
}

// Dispatch executes call and returns its payload.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) Outcome {
	start := time.Now()
	out := Outcome{Call: call}

	if call.Function.Name != SelectSQL {
		out.fail(&UnknownToolError{Name: call.Function.Name}, "")
		out.Duration = time.Since(start)
		return out
	}

	var req query.Request
	if err := json.Unmarshal([]byte(call.Function.Arguments), &req); err != nil {
		out.fail(err, "Invalid arguments: "+err.Error())
		out.Duration = time.Since(start)
		return out
	}

	res, err := d.runner.Run(ctx, req)
	out.Duration = time.Since(start)
	if err != nil {
		out.fail(err, "")
		d.logger.Debug("tool call failed", "tool", call.Function.Name, "call_id", call.ID, "error", err)
		return out
	}

	rows := res.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	payload, err := encode(rows)
	if err != nil {
		out.fail(err, "Error encoding results: "+err.Error())
		return out
	}
	out.Payload = payload
	out.Status = StatusOK
	out.Statement = res.Statement
	out.Rows = len(res.Rows)
	return out
}

// fail records err and renders its payload. A non-empty message overrides
// the classification by error type.
func (o *Outcome) fail(err error, message string) {
	o.Err = err
	o.Status = StatusError
	if message == "" {
		message = ErrorMessage(err)
	}
	o.Payload = ErrorPayload(message)
}

// ErrorMessage renders the text of a failed call the way the model is
// prompted to expect it.
func ErrorMessage(err error) string {
	var (
		ve *query.ValidationError
		nf *query.NotFoundError
		ut *UnknownToolError
	)
	switch {
	case errors.As(err, &ut):
		return ut.Error()
	case errors.As(err, &ve), errors.As(err, &nf):
		return fmt.Sprintf("Validation Error: %s. Please check your column names and make sure they "+
			"exactly match the available columns in the database schema.", err.Error())
	default:
		return fmt.Sprintf("Error executing query: %s. Please verify your SQL syntax and make sure "+
			"you're using valid column names from the schema.", err.Error())
	}
}

// ErrorPayload encodes message as {"error": message}.
func ErrorPayload(message string) string {
	s, _ := encode(map[string]string{"error": message})
	return s
}

// encode marshals v without HTML escaping so comparison operators in
// replayed clauses stay readable.
func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
