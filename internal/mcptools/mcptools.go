// Package mcptools exposes the answer pipeline as a Model Context Protocol
// server so agent frameworks and editors can call it as a tool backend.
//
// Three tools are registered:
//   - "ask_barista" runs the full answer pipeline on a question and returns
//     the reply together with the stage that produced it.
//   - "search_coffee_knowledge" queries the answer base directly and returns
//     the scored matches.
//   - "check_coffee_topic" reports the topic admission verdict for a text
//     without answering it.
//
// The server speaks the streamable-HTTP transport of the official MCP Go
// SDK; mount [Server.Handler] on the ops mux. All handlers are safe for
// concurrent use.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/baristabuddy/baristabuddy/internal/knowledge"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/internal/topic"
)

// serverName identifies this server to MCP clients during initialization.
const serverName = "baristabuddy"

// Config assembles the collaborators of a [Server].
type Config struct {
	// Pipeline answers ask_barista calls. Must not be nil.
	Pipeline *pipeline.Pipeline

	// Retriever serves search_coffee_knowledge. Must not be nil.
	Retriever *knowledge.Retriever

	// Filter serves check_coffee_topic. Must not be nil.
	Filter *topic.Filter

	// Metrics records tool call counts and latencies. Optional.
	Metrics *observe.Metrics

	// Version is reported to MCP clients. Empty means "dev".
	Version string
}

// Server adapts the pipeline and its collaborators to MCP tools.
type Server struct {
	server    *mcpsdk.Server
	pipeline  *pipeline.Pipeline
	retriever *knowledge.Retriever
	filter    *topic.Filter
	metrics   *observe.Metrics
}

// New builds the MCP server and registers the three barista tools.
func New(cfg Config) (*Server, error) {
	var errs []error
	if cfg.Pipeline == nil {
		errs = append(errs, errors.New("mcptools: pipeline must not be nil"))
	}
	if cfg.Retriever == nil {
		errs = append(errs, errors.New("mcptools: retriever must not be nil"))
	}
	if cfg.Filter == nil {
		errs = append(errs, errors.New("mcptools: filter must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server:    mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, nil),
		pipeline:  cfg.Pipeline,
		retriever: cfg.Retriever,
		filter:    cfg.Filter,
		metrics:   cfg.Metrics,
	}

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "ask_barista",
		Description: "Answer a coffee question through the full barista pipeline: pronunciation normalization, topic admission, answer-base retrieval and the generative fallback. Returns the answer and which stage produced it.",
	}, instrument(s, "ask_barista", s.askBarista))

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "search_coffee_knowledge",
		Description: "Search the coffee answer base by fuzzy question similarity. Returns the stored question, answer and similarity score of each match, best first.",
	}, instrument(s, "search_coffee_knowledge", s.searchKnowledge))

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "check_coffee_topic",
		Description: "Check whether a text is coffee-related without answering it. Returns the admission verdict, the confidence and the matched keyword or refusal reason.",
	}, instrument(s, "check_coffee_topic", s.checkTopic))

	return s, nil
}

// Handler returns the streamable-HTTP handler for mounting on a mux.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.server }, nil)
}

// instrument wraps a typed tool handler with latency and call-count
// recording. Handler errors surface to the client as tool errors, so they
// count under status "error" here and nowhere else.
func instrument[In, Out any](s *Server, tool string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		if s.metrics != nil {
			s.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(observe.Attr("tool", tool)))
			status := "ok"
			if err != nil {
				status = "error"
			}
			s.metrics.RecordToolCall(ctx, tool, status)
		}
		return res, out, err
	}
}

// askBaristaInput is the JSON-decoded input for the "ask_barista" tool.
type askBaristaInput struct {
	// Question is the coffee question to answer.
	Question string `json:"question" jsonschema:"the coffee question to answer"`
}

// askBaristaOutput is the structured result of the "ask_barista" tool.
type askBaristaOutput struct {
	// Answer is the final reply text.
	Answer string `json:"answer"`

	// Source names the stage that produced the answer: refused, knowledge
	// or fallback.
	Source string `json:"source"`

	// Normalized is the question after pronunciation correction.
	Normalized string `json:"normalized"`

	// Score is the retrieval similarity when the answer base served the
	// answer, 0 otherwise.
	Score float64 `json:"score,omitempty"`
}

func (s *Server) askBarista(ctx context.Context, _ *mcpsdk.CallToolRequest, in askBaristaInput) (*mcpsdk.CallToolResult, askBaristaOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, askBaristaOutput{}, errors.New("mcptools: ask_barista: question must not be empty")
	}

	res, err := s.pipeline.Process(ctx, question)
	if err != nil {
		return nil, askBaristaOutput{}, fmt.Errorf("mcptools: ask_barista: %w", err)
	}
	return nil, askBaristaOutput{
		Answer:     res.Answer,
		Source:     string(res.Source),
		Normalized: res.Normalized,
		Score:      res.Score,
	}, nil
}

// searchKnowledgeInput is the JSON-decoded input for the
// "search_coffee_knowledge" tool.
type searchKnowledgeInput struct {
	// Query is the text to match against the stored questions.
	Query string `json:"query" jsonschema:"text to match against the stored coffee questions"`

	// TopK caps the number of matches. Zero or omitted uses the default.
	TopK int `json:"top_k,omitempty" jsonschema:"maximum number of matches to return"`
}

// searchKnowledgeOutput is the structured result of the
// "search_coffee_knowledge" tool.
type searchKnowledgeOutput struct {
	// Matches holds the scored hits, best first. Empty when nothing clears
	// the similarity cutoff.
	Matches []knowledge.Match `json:"matches"`
}

func (s *Server) searchKnowledge(_ context.Context, _ *mcpsdk.CallToolRequest, in searchKnowledgeInput) (*mcpsdk.CallToolResult, searchKnowledgeOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, searchKnowledgeOutput{}, errors.New("mcptools: search_coffee_knowledge: query must not be empty")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return nil, searchKnowledgeOutput{Matches: s.retriever.Retrieve(query, topK)}, nil
}

// checkTopicInput is the JSON-decoded input for the "check_coffee_topic"
// tool.
type checkTopicInput struct {
	// Text is the text to test for coffee relevance.
	Text string `json:"text" jsonschema:"the text to test for coffee relevance"`
}

// checkTopicOutput is the structured result of the "check_coffee_topic"
// tool.
type checkTopicOutput struct {
	// Related reports whether the text would be admitted.
	Related bool `json:"related"`

	// Confidence is 1 for a keyword hit and 0 otherwise.
	Confidence float64 `json:"confidence"`

	// Reason names the matched keyword or explains the refusal.
	Reason string `json:"reason"`
}

func (s *Server) checkTopic(_ context.Context, _ *mcpsdk.CallToolRequest, in checkTopicInput) (*mcpsdk.CallToolResult, checkTopicOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, checkTopicOutput{}, errors.New("mcptools: check_coffee_topic: text must not be empty")
	}
	d := s.filter.Evaluate(in.Text)
	return nil, checkTopicOutput{
		Related:    d.Related,
		Confidence: d.Confidence,
		Reason:     d.Reason,
	}, nil
}
