// Package chat implements the conversational query interface: a
// bounded tool-call loop between the text-understanding service and
// two read-only store tools.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/llm"
	"github.com/openrec/reggie/internal/reggie"
)

const systemPrompt = `You are Reggie, a helpful assistant for finding local activity programs.
You have access to a database of programs scraped from parks & recreation websites.
Use the available tools to answer questions about programs. Be concise.`

// maxRounds bounds the tool-call loop; when the service is still
// requesting tools after this many round trips the loop gives up with
// limitMessage instead of recursing further.
const maxRounds = 5

const limitMessage = "I reached my response limit. Please try a more specific question."

// QueryStore is the read-only store surface the chat tools run against.
type QueryStore interface {
	SearchPrograms(ctx context.Context, filter reggie.ProgramFilter) ([]reggie.ProgramWithSite, error)
	ListSites(ctx context.Context) ([]reggie.Site, error)
}

// Completer is the LLM round-trip needed by the loop.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Service drives chat conversations.
type Service struct {
	client Completer
	store  QueryStore
	logger *zap.Logger
}

// NewService builds a chat Service.
func NewService(client Completer, store QueryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, store: store, logger: logger}
}

func tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "search_programs",
			Description: "Search programs in the database. All parameters are optional filters.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":      map[string]any{"type": "string", "description": "Activity type, e.g. soccer, swim, basketball"},
					"age_group": map[string]any{"type": "string", "description": "Age group, e.g. youth, adult, senior"},
					"status":    map[string]any{"type": "string", "description": "Registration status, e.g. open, closed"},
					"site_id":   map[string]any{"type": "number", "description": "Filter by site ID"},
				},
			},
		},
		{
			Name:        "list_sites",
			Description: "List all configured sites in the database.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// Respond runs the conversation until the service ends its turn, a
// round limit is hit, or the call fails. The supplied history is not
// mutated.
func (s *Service) Respond(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: messages are required", reggie.ErrValidation)
	}
	history := make([]llm.Message, len(messages))
	copy(history, messages)

	for i := 0; i < maxRounds; i++ {
		resp, err := s.client.Complete(ctx, llm.Request{
			System:   systemPrompt,
			Tools:    tools(),
			Messages: history,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}

		switch resp.StopReason {
		case llm.StopEndTurn:
			return resp.FirstText(), nil

		case llm.StopToolUse:
			history = append(history, llm.Message{Role: "assistant", Content: resp.Content})
			var results []llm.ContentBlock
			for _, use := range resp.ToolUses() {
				results = append(results, llm.ContentBlock{
					Type:      "tool_result",
					ToolUseID: use.ID,
					Content:   s.runTool(ctx, use.Name, use.Input),
				})
			}
			history = append(history, llm.Message{Role: "user", Content: results})

		default:
			// Unexpected stop reason: return whatever text we have.
			s.logger.Warn("unexpected chat stop reason", zap.String("stop_reason", resp.StopReason))
			if text := resp.FirstText(); text != "" {
				return text, nil
			}
			return "No response.", nil
		}
	}
	return limitMessage, nil
}

type searchProgramsInput struct {
	Type     string `json:"type"`
	AgeGroup string `json:"age_group"`
	Status   string `json:"status"`
	SiteID   int64  `json:"site_id"`
}

// runTool executes one tool call and returns a JSON payload. Tool
// failures are reported back to the model as an error payload rather
// than aborting the conversation.
func (s *Service) runTool(ctx context.Context, name string, input json.RawMessage) string {
	payload, err := s.execTool(ctx, name, input)
	if err != nil {
		s.logger.Warn("chat tool failed", zap.String("tool", name), zap.Error(err))
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON)
	}
	return payload
}

func (s *Service) execTool(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case "list_sites":
		sites, err := s.store.ListSites(ctx)
		if err != nil {
			return "", fmt.Errorf("list sites: %w", err)
		}
		return marshalTool(sites)

	case "search_programs":
		var in searchProgramsInput
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("decode tool input: %w", err)
			}
		}
		programs, err := s.store.SearchPrograms(ctx, reggie.ProgramFilter{
			SiteID:   in.SiteID,
			Type:     in.Type,
			AgeGroup: in.AgeGroup,
			Status:   in.Status,
		})
		if err != nil {
			return "", fmt.Errorf("search programs: %w", err)
		}
		return marshalTool(programs)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func marshalTool(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
