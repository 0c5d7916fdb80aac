package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// searchToolName is the callable tool exposed to the completion service.
const searchToolName = "search_attributes"

// defaultMaxToolRounds bounds the model-directed tool loop. The model
// conceptually queries once per type but the exact count is its call.
const defaultMaxToolRounds = 8

const systemPromptTemplate = `You match a free-text request against a catalog of professional attributes.
Supported attribute types: %s.
For each type that is relevant to the request, call the %s tool with a short
search query to find matching catalog entries. Query each relevant type once.
Skip types the request says nothing about. When you are done searching,
reply with a short summary.`

// Model is the narrow completion-service surface the extractor needs.
// *openai.LLM from langchaingo satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config holds construction-time extractor configuration. The searchable
// type list is injected here rather than read from process-wide state, so
// adding a type is a configuration change only.
type Config struct {
	// Types is the ordered list of attribute types the tool schema offers.
	Types []string

	// MaxPerType caps resolved attributes per type. Defaults to 3.
	MaxPerType int

	// MaxToolRounds bounds the tool-execution loop. Defaults to 8.
	MaxToolRounds int

	// Temperature for the completion request.
	Temperature float64
}

// Extractor maps free text to resolved attribute identifiers by driving a
// tool-calling conversation with a completion service. Each tool invocation
// is resolved against the attribute catalog; the model never invents
// identifiers.
type Extractor struct {
	model    Model
	resolver Resolver
	cfg      Config
	logger   *slog.Logger
}

// New creates an Extractor. The type list in cfg is required.
func New(model Model, resolver Resolver, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxPerType <= 0 {
		cfg.MaxPerType = 3
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, resolver: resolver, cfg: cfg, logger: logger}
}

// searchArgs is the tool-call argument payload.
type searchArgs struct {
	Query         string `json:"query"`
	AttributeType string `json:"attribute_type"`
}

// toolResult is one resolved catalog entry echoed back to the model.
type toolResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Extract runs one extraction conversation and returns the resolved set.
//
// Empty or whitespace-only text returns ErrInvalidInput before any external
// call. Completion-service failures return errors wrapping
// ErrExtractionFailed. A conversation in which the model resolves nothing is
// a success with an empty set.
func (e *Extractor) Extract(ctx context.Context, text string) (*AttributeSet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	set := NewAttributeSet(e.cfg.Types)
	tools := []llms.Tool{e.searchTool()}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem,
			fmt.Sprintf(systemPromptTemplate, strings.Join(e.cfg.Types, ", "), searchToolName)),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	for round := 0; round < e.cfg.MaxToolRounds; round++ {
		resp, err := e.model.GenerateContent(ctx, messages,
			llms.WithTools(tools),
			llms.WithTemperature(e.cfg.Temperature),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: completion request: %w", ErrExtractionFailed, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%w: completion returned no choices", ErrExtractionFailed)
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return set, nil
		}

		// Echo the assistant's tool calls back before the tool responses,
		// as the chat contract requires.
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		messages = append(messages, assistant)

		for _, tc := range choice.ToolCalls {
			response, err := e.executeToolCall(ctx, tc, set)
			if err != nil {
				return nil, err
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{response},
			})
		}
	}

	e.logger.Warn("tool loop hit round limit", "rounds", e.cfg.MaxToolRounds)
	return set, nil
}

// executeToolCall resolves one search_attributes invocation and records the
// results in the set.
func (e *Extractor) executeToolCall(ctx context.Context, tc llms.ToolCall, set *AttributeSet) (llms.ToolCallResponse, error) {
	if tc.FunctionCall == nil || tc.FunctionCall.Name != searchToolName {
		name := ""
		if tc.FunctionCall != nil {
			name = tc.FunctionCall.Name
		}
		return llms.ToolCallResponse{}, fmt.Errorf("%w: unknown tool %q", ErrExtractionFailed, name)
	}

	var args searchArgs
	if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
		return llms.ToolCallResponse{}, fmt.Errorf("%w: malformed tool arguments: %w", ErrExtractionFailed, err)
	}
	if !e.typeConfigured(args.AttributeType) {
		return llms.ToolCallResponse{}, fmt.Errorf("%w: unsupported attribute type %q", ErrExtractionFailed, args.AttributeType)
	}

	resolved, err := e.resolver.Resolve(ctx, args.Query, args.AttributeType, e.cfg.MaxPerType)
	if err != nil {
		return llms.ToolCallResponse{}, fmt.Errorf("%w: attribute lookup: %w", ErrExtractionFailed, err)
	}

	results := make([]toolResult, 0, len(resolved))
	for _, a := range resolved {
		set.Add(a, e.cfg.MaxPerType)
		results = append(results, toolResult{ID: a.ID, Name: a.Name, Type: a.Type})
	}

	content, err := json.Marshal(results)
	if err != nil {
		return llms.ToolCallResponse{}, fmt.Errorf("%w: encode tool result: %w", ErrExtractionFailed, err)
	}

	e.logger.Debug("resolved tool call",
		"type", args.AttributeType,
		"query", args.Query,
		"results", len(results))

	return llms.ToolCallResponse{
		ToolCallID: tc.ID,
		Name:       searchToolName,
		Content:    string(content),
	}, nil
}

// searchTool builds the tool schema: a free-text query plus a type filter
// restricted to the configured types.
func (e *Extractor) searchTool() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        searchToolName,
			Description: "Search the attribute catalog for entries of one type matching a query. Returns up to the top matches in relevance order.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query to match against attribute names",
					},
					"attribute_type": map[string]any{
						"type":        "string",
						"enum":        e.cfg.Types,
						"description": "Type of attribute to search for",
					},
				},
				"required": []string{"query", "attribute_type"},
			},
		},
	}
}

func (e *Extractor) typeConfigured(t string) bool {
	for _, configured := range e.cfg.Types {
		if configured == t {
			return true
		}
	}
	return false
}
