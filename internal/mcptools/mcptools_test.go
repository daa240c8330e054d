package mcptools_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/baristabuddy/baristabuddy/internal/knowledge"
	"github.com/baristabuddy/baristabuddy/internal/lexicon"
	"github.com/baristabuddy/baristabuddy/internal/mcptools"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/internal/topic"
)

// scriptedFallback returns a canned reply for every delegated query.
type scriptedFallback struct {
	reply string
}

func (f *scriptedFallback) Respond(_ context.Context, _ string) (string, error) {
	return f.reply, nil
}

// newServer wires an MCP server over the embedded default datasets.
func newServer(t *testing.T, metrics *observe.Metrics) *mcptools.Server {
	t.Helper()

	norm, err := lexicon.NewNormalizer(lexicon.Default())
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	retr, err := knowledge.NewRetriever(knowledge.Default())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	filter := topic.NewFilter(topic.Default())
	p, err := pipeline.New(norm, filter, retr, &scriptedFallback{reply: "Kopi luwak is a rare Indonesian coffee."})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	srv, err := mcptools.New(mcptools.Config{
		Pipeline:  p,
		Retriever: retr,
		Filter:    filter,
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("mcptools.New: %v", err)
	}
	return srv
}

// connect serves srv over streamable HTTP and returns a connected client
// session.
func connect(t *testing.T, srv *mcptools.Server) *mcpsdk.ClientSession {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "mcptools-test", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &mcpsdk.StreamableClientTransport{Endpoint: ts.URL}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// callText invokes a tool and returns its text content, failing the test on
// any transport or tool error.
func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) string {
	t.Helper()

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool %s returned a tool error: %v", name, res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool %s returned no content", name)
	}
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("CallTool %s content is %T, want *TextContent", name, res.Content[0])
	}
	return tc.Text
}

// defaultAnswer returns the embedded answer for a knowledge-base question.
func defaultAnswer(t *testing.T, question string) string {
	t.Helper()
	for _, e := range knowledge.Default().Entries() {
		if e.Question == question {
			return e.Answer
		}
	}
	t.Fatalf("question %q not in the default answer base", question)
	return ""
}

func TestNew_Validation(t *testing.T) {
	_, err := mcptools.New(mcptools.Config{})
	if err == nil {
		t.Fatal("expected error for zero config")
	}
	for _, want := range []string{"pipeline", "retriever", "filter"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestServer_ListsTools(t *testing.T) {
	session := connect(t, newServer(t, nil))

	found := make(map[string]bool)
	for tool, err := range session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Tools: %v", err)
		}
		found[tool.Name] = true
	}

	for _, name := range []string{"ask_barista", "search_coffee_knowledge", "check_coffee_topic"} {
		if !found[name] {
			t.Errorf("tool %s not listed", name)
		}
	}
}

func TestAskBarista_AnswersFromKnowledgeBase(t *testing.T) {
	session := connect(t, newServer(t, nil))

	text := callText(t, session, "ask_barista", map[string]any{"question": "how do i make espresso"})

	var out struct {
		Answer     string  `json:"answer"`
		Source     string  `json:"source"`
		Normalized string  `json:"normalized"`
		Score      float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}

	if want := defaultAnswer(t, "how do i make espresso"); out.Answer != want {
		t.Errorf("answer = %q, want %q", out.Answer, want)
	}
	if out.Source != "knowledge" {
		t.Errorf("source = %q, want knowledge", out.Source)
	}
	if out.Score < 0.99 {
		t.Errorf("score = %v, want an exact-match score", out.Score)
	}
}

func TestAskBarista_RefusesOffTopic(t *testing.T) {
	session := connect(t, newServer(t, nil))

	text := callText(t, session, "ask_barista", map[string]any{"question": "what is the weather today"})

	var out struct {
		Answer string `json:"answer"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}

	if out.Source != "refused" {
		t.Errorf("source = %q, want refused", out.Source)
	}
	if out.Answer != pipeline.RefusalMessage {
		t.Errorf("answer = %q, want the refusal message", out.Answer)
	}
}

func TestAskBarista_DelegatesToFallback(t *testing.T) {
	session := connect(t, newServer(t, nil))

	text := callText(t, session, "ask_barista", map[string]any{"question": "tell me about kopi luwak coffee"})

	var out struct {
		Answer string `json:"answer"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}

	if out.Source != "fallback" {
		t.Errorf("source = %q, want fallback", out.Source)
	}
	if out.Answer != "Kopi luwak is a rare Indonesian coffee." {
		t.Errorf("answer = %q, want the fallback reply", out.Answer)
	}
}

func TestAskBarista_EmptyQuestionIsToolError(t *testing.T) {
	session := connect(t, newServer(t, nil))

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "ask_barista",
		Arguments: map[string]any{"question": "   "},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want a tool error for a blank question")
	}
}

func TestSearchCoffeeKnowledge_ExactQuestion(t *testing.T) {
	session := connect(t, newServer(t, nil))

	text := callText(t, session, "search_coffee_knowledge", map[string]any{
		"query": "cappuccino recipe",
		"top_k": 1,
	})

	var out struct {
		Matches []knowledge.Match `json:"matches"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}

	if len(out.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(out.Matches))
	}
	if out.Matches[0].Question != "cappuccino recipe" {
		t.Errorf("match question = %q, want cappuccino recipe", out.Matches[0].Question)
	}
	if out.Matches[0].Score < 0.99 {
		t.Errorf("score = %v, want an exact-match score", out.Matches[0].Score)
	}
}

func TestSearchCoffeeKnowledge_NoMatches(t *testing.T) {
	session := connect(t, newServer(t, nil))

	text := callText(t, session, "search_coffee_knowledge", map[string]any{
		"query": "quarterly revenue projections",
	})

	var out struct {
		Matches []knowledge.Match `json:"matches"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}
	if len(out.Matches) != 0 {
		t.Errorf("got %d matches, want none", len(out.Matches))
	}
}

func TestCheckCoffeeTopic_Verdicts(t *testing.T) {
	session := connect(t, newServer(t, nil))

	var out struct {
		Related    bool    `json:"related"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}

	text := callText(t, session, "check_coffee_topic", map[string]any{"text": "how do I brew coffee at home"})
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}
	if !out.Related {
		t.Error("coffee question reported unrelated")
	}
	if out.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", out.Confidence)
	}
	if out.Reason == "" {
		t.Error("reason is empty for a keyword hit")
	}

	text = callText(t, session, "check_coffee_topic", map[string]any{"text": "summarize the stock market news"})
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode result %q: %v", text, err)
	}
	if out.Related {
		t.Error("off-topic text reported related")
	}
}

func TestToolCallsAreCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	session := connect(t, newServer(t, metrics))

	callText(t, session, "ask_barista", map[string]any{"question": "how do i make espresso"})
	if _, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "ask_barista",
		Arguments: map[string]any{"question": ""},
	}); err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var sum metricdata.Sum[int64]
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "baristabuddy.tool.calls" {
				s, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatal("tool.calls is not a sum")
				}
				sum = s
				found = true
			}
		}
	}
	if !found {
		t.Fatal("tool.calls metric not found")
	}

	if got := toolCallCount(sum, "ask_barista", "ok"); got != 1 {
		t.Errorf("ok calls = %d, want 1", got)
	}
	if got := toolCallCount(sum, "ask_barista", "error"); got != 1 {
		t.Errorf("error calls = %d, want 1", got)
	}
}

// toolCallCount returns the counter value for the given tool and status
// attribute pair, or 0 when no data point matches.
func toolCallCount(sum metricdata.Sum[int64], tool, status string) int64 {
	for _, dp := range sum.DataPoints {
		var gotTool, gotStatus string
		for _, kv := range dp.Attributes.ToSlice() {
			switch string(kv.Key) {
			case "tool":
				gotTool = kv.Value.AsString()
			case "status":
				gotStatus = kv.Value.AsString()
			}
		}
		if gotTool == tool && gotStatus == status {
			return dp.Value
		}
	}
	return 0
}
