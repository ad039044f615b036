package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tabletalk/tabletalk/internal/audit"
	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/connector/sqlite"
	"github.com/tabletalk/tabletalk/internal/executor"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    connector.Connector
	schema   *catalog.Provider
	audit    *audit.Store
	provider *llm.ScriptedProvider
	router   chi.Router
}

// newTestEnv creates a SQLite store holding an accounts table, a catalog, an
// in-memory audit store and a chi router with all handlers mounted.
func newTestEnv(t *testing.T, responses ...*llm.ChatResponse) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store := sqlite.New()
	if err := store.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: filepath.Join(dir, "store.db")}); err != nil {
		t.Fatalf("connect store: %v", err)
	}
	t.Cleanup(func() { store.Disconnect() })

	for _, stmt := range []string{
		`CREATE TABLE accounts ("Account" TEXT, "Transaction Value" REAL, "Clearing Date" TEXT)`,
		`INSERT INTO accounts VALUES ('A-1', 1500.5, '2024-01-03'), ('A-2', 200, '2024-02-11'), ('B-7', 4000, NULL)`,
	} {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	schema := catalog.NewProvider(store, catalog.Options{SchemaFile: filepath.Join(dir, "schema.json")}, nil)
	if err := schema.Ensure(ctx); err != nil {
		t.Fatalf("ensure catalog: %v", err)
	}

	auditStore, err := audit.NewStore("")
	if err != nil {
		t.Fatalf("audit.NewStore: %v", err)
	}
	t.Cleanup(func() { auditStore.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := executor.New(store, logger)
	provider := llm.NewScriptedProvider(responses...)
	loop := chat.NewLoop(provider, schema, tools.NewDispatcher(exec, logger), chat.Config{},
		chat.WithRecorder(auditStore), chat.WithLogger(logger))

	chatHandler := NewChatHandler(loop, logger)
	queryHandler := NewQueryHandler(exec)
	schemaHandler := NewSchemaHandler(schema)
	historyHandler := NewHistoryHandler(auditStore)

	r := chi.NewRouter()
	r.Get("/", chatHandler.Root)
	r.Post("/chat", chatHandler.Chat)
	r.Get("/test_db_query", queryHandler.TestDBQuery)
	r.Get("/openapi.json", NewOpenAPIHandler(schema, "test", false).ServeSpec)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", queryHandler.Query)
		r.Get("/schema", schemaHandler.GetSchema)
		r.Post("/schema/refresh", schemaHandler.Refresh)
		r.Get("/tool-schema", schemaHandler.ToolSchema)
		r.Get("/tool-calls", historyHandler.ListToolCalls)
		r.Get("/tool-calls/{id}", historyHandler.GetToolCall)
	})

	return &testEnv{store: store, schema: schema, audit: auditStore, provider: provider, router: r}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decodeJSON decodes the response body into a map.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response body: %v\nbody: %s", err, w.Body.String())
	}
	return result
}

func chatBody(messages ...model.ChatMessage) model.ChatRequest {
	return model.ChatRequest{ConversationHistory: messages}
}

func user(text string) model.ChatMessage {
	return model.ChatMessage{Role: "user", Content: text}
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChatAnswersAfterToolCall(t *testing.T) {
	env := newTestEnv(t,
		llm.CallTool("call_1", "selectSQL", `{"TableName":"accounts","WhereClause":"Transaction Value > 1000"}`),
		llm.Answer("Two accounts exceed 1000: A-1 and B-7."),
	)

	w := env.do("POST", "/chat", chatBody(user("Which accounts exceed 1000?")))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp model.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Two accounts exceed 1000: A-1 and B-7." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if resp.Turns != 2 || resp.ToolCalls != 1 {
		t.Errorf("expected 2 turns and 1 tool call, got %d/%d", resp.Turns, resp.ToolCalls)
	}
	if resp.RequestID == "" {
		t.Error("expected a request id")
	}

	records, err := env.audit.List(context.Background(), audit.ListOptions{RunID: resp.RequestID})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Statement != `SELECT * FROM "accounts" WHERE "Transaction Value" > 1000 LIMIT 5` {
		t.Errorf("unexpected statement %q", records[0].Statement)
	}
}

func TestChatPlainText(t *testing.T) {
	env := newTestEnv(t, llm.Answer("There are 3 accounts."))

	w := env.do("POST", "/chat", chatBody(user("how many accounts?")), "Accept", "text/plain")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}
	if w.Body.String() != "There are 3 accounts." {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestChatBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		wantMsg string
	}{
		{"malformed json", `{"conversationHistory": [`, "Invalid request body"},
		{"empty history", chatBody(), "at least one message"},
		{"unknown role", chatBody(model.ChatMessage{Role: "robot", Content: "beep"}), "invalid conversation"},
		{"late system message", chatBody(user("hi"), model.ChatMessage{Role: "system", Content: "x"}), "system message must come first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, llm.Answer("unused"))
			w := env.do("POST", "/chat", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantMsg) {
				t.Errorf("expected %q in %s", tt.wantMsg, w.Body.String())
			}
			if env.provider.Calls() != 0 {
				t.Errorf("provider must not be called, got %d calls", env.provider.Calls())
			}
		})
	}
}

func TestChatProviderErrors(t *testing.T) {
	tests := []struct {
		kind llm.ErrorKind
		want int
	}{
		{llm.KindUnavailable, http.StatusBadGateway},
		{llm.KindUnauthorized, http.StatusUnauthorized},
		{llm.KindRateLimited, http.StatusTooManyRequests},
		{llm.KindTimeout, http.StatusGatewayTimeout},
		{llm.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.Err = &llm.ProviderError{Kind: tt.kind, Err: errors.New("upstream")}

			w := env.do("POST", "/chat", chatBody(user("hi")))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			body := decodeJSON(t, w)
			detail := body["error"].(map[string]interface{})
			if int(detail["code"].(float64)) != tt.want {
				t.Errorf("envelope code = %v, want %d", detail["code"], tt.want)
			}
		})
	}
}

func TestChatLoopExceeded(t *testing.T) {
	var responses []*llm.ChatResponse
	for i := 0; i < chat.DefaultMaxTurns+1; i++ {
		responses = append(responses, llm.CallTool("c", "selectSQL", `{"TableName":"accounts"}`))
	}
	env := newTestEnv(t, responses...)

	w := env.do("POST", "/chat", chatBody(user("loop")))
	if w.Code != StatusLoopDetected {
		t.Fatalf("expected 508, got %d: %s", w.Code, w.Body.String())
	}
	if env.provider.Calls() != chat.DefaultMaxTurns {
		t.Errorf("expected %d provider calls, got %d", chat.DefaultMaxTurns, env.provider.Calls())
	}
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeJSON(t, w); body["Hello"] != "World" {
		t.Errorf("unexpected body %v", body)
	}
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

func TestTestDBQuery(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/test_db_query", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !strings.HasPrefix(w.Body.String(), `[{"Account":"A-1","Transaction Value":1500.5`) {
		t.Errorf("expected column order preserved, got %s", w.Body.String())
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCount  int
		wantMsg    string
	}{
		{
			name:       "columns and order",
			body:       map[string]interface{}{"TableName": "accounts", "Columns": []string{"Account"}, "OrderBy": "Transaction Value DESC"},
			wantStatus: http.StatusOK,
			wantCount:  3,
		},
		{
			name:       "missing table name",
			body:       map[string]interface{}{"Columns": []string{"Account"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "TableName is required",
		},
		{
			name:       "unknown table",
			body:       map[string]interface{}{"TableName": "users"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "does not exist in the database",
		},
		{
			name:       "denylisted table name",
			body:       map[string]interface{}{"TableName": "users; DROP TABLE accounts"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Dangerous SQL detected: ;",
		},
		{
			name:       "unknown column",
			body:       map[string]interface{}{"TableName": "accounts", "WhereClause": "Value > 10"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Column 'Value' not found",
		},
		{
			name:       "denylisted clause",
			body:       map[string]interface{}{"TableName": "accounts", "WhereClause": "1=1; DELETE FROM accounts"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Dangerous SQL detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do("POST", "/api/v1/query", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantMsg != "" && !strings.Contains(w.Body.String(), tt.wantMsg) {
				t.Errorf("expected %q in %s", tt.wantMsg, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeJSON(t, w)
				if int(body["count"].(float64)) != tt.wantCount {
					t.Errorf("count = %v, want %d", body["count"], tt.wantCount)
				}
				first := body["resource"].([]interface{})[0].(map[string]interface{})
				if first["Account"] != "B-7" || len(first) != 1 {
					t.Errorf("unexpected first row %v", first)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func TestGetSchema(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/api/v1/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeJSON(t, w)
	accounts, ok := body["accounts"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected accounts table in %v", body)
	}
	if accounts["description"] != "Accrual accounts data" {
		t.Errorf("unexpected description %v", accounts["description"])
	}

	w = env.do("GET", "/api/v1/schema?format=text", nil)
	if !strings.Contains(w.Body.String(), "TABLE: accounts\n") {
		t.Errorf("expected prompt rendering, got %s", w.Body.String())
	}
}

func TestRefreshSchemaPicksUpNewTables(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/api/v1/query", map[string]interface{}{"TableName": "ledger"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the table exists, got %d", w.Code)
	}

	cat, _ := env.schema.GetSchema(context.Background())
	if _, ok := cat.Table("ledger"); ok {
		t.Fatal("ledger must not be in the catalog yet")
	}

	// A new table appears in the store; the catalog only sees it after refresh.
	if _, err := env.store.DB().Exec(`CREATE TABLE ledger ("Entry" INTEGER)`); err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	w = env.do("POST", "/api/v1/schema/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := decodeJSON(t, w)["ledger"]; !ok {
		t.Errorf("expected ledger after refresh: %s", w.Body.String())
	}
}

func TestToolSchema(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/v1/tool-schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var tool llm.Tool
	if err := json.Unmarshal(w.Body.Bytes(), &tool); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tool.Function.Name != "selectSQL" {
		t.Errorf("unexpected tool name %q", tool.Function.Name)
	}
	if !strings.Contains(w.Body.String(), `"enum":["accounts"]`) {
		t.Errorf("expected table enum in %s", w.Body.String())
	}
}

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/openapi.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["openapi"] != "3.1.0" {
		t.Errorf("unexpected openapi version %v", body["openapi"])
	}
	paths := body["paths"].(map[string]interface{})
	if _, ok := paths["/chat"]; !ok {
		t.Error("expected /chat path")
	}
	servers := body["servers"].([]interface{})
	if servers[0].(map[string]interface{})["url"] != "http://example.com" {
		t.Errorf("unexpected servers %v", servers)
	}
}

// ---------------------------------------------------------------------------
// Tool call history
// ---------------------------------------------------------------------------

func TestToolCallHistory(t *testing.T) {
	env := newTestEnv(t,
		llm.CallTool("c1", "selectSQL", `{"TableName":"accounts"}`),
		llm.CallTool("c2", "selectSQL", `{"TableName":"nope"}`),
		llm.Answer("done"),
	)
	if w := env.do("POST", "/chat", chatBody(user("go"))); w.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", w.Code, w.Body.String())
	}

	w := env.do("GET", "/api/v1/tool-calls", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if n := body["meta"].(map[string]interface{})["count"].(float64); n != 2 {
		t.Fatalf("expected 2 records, got %v", n)
	}

	w = env.do("GET", "/api/v1/tool-calls?status=error", nil)
	resource := decodeJSON(t, w)["resource"].([]interface{})
	if len(resource) != 1 {
		t.Fatalf("expected 1 failed call, got %d", len(resource))
	}
	failed := resource[0].(map[string]interface{})
	if failed["call_id"] != "c2" {
		t.Errorf("unexpected failed call %v", failed)
	}

	w = env.do("GET", "/api/v1/tool-calls/"+failed["id"].(string), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if w := env.do("GET", "/api/v1/tool-calls/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
	if w := env.do("GET", "/api/v1/tool-calls?status=maybe", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", w.Code)
	}
}

