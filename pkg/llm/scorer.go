// Package llm scores news items for importance and credibility with an OpenAI-compatible model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/denius89/news-ai-bot-sub002/pkg/config"
	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
	"github.com/denius89/news-ai-bot-sub002/pkg/scoring"
)

// maxContentRunes limits the article body sent to the model
const maxContentRunes = 1500

var errBadJSON = errors.New("failed to parse json")

// Scorer asks the model for importance and credibility of one item
type Scorer struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
}

// NewScorer creates a new LLM scorer
func NewScorer(cfg config.LLMConfig) *Scorer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Scorer{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
	}
}

const defaultSystemPrompt = `You are a news editor rating incoming articles for a news digest.
For the article provided return a JSON object with two fields:
- importance: number from 0 to 1, how significant the news is for readers of the given category.
  0-0.3 routine or promotional, 0.4-0.6 noteworthy, 0.7-0.8 important, 0.9-1 major event.
- credibility: number from 0 to 1, how trustworthy the article looks (sourcing, tone, factual density).
  Clickbait, unverified rumours and advertising get low credibility.
Respond with the JSON object only, for example {"importance": 0.7, "credibility": 0.8}.`

type verdict struct {
	Importance  *float64 `json:"importance"`
	Credibility *float64 `json:"credibility"`
}

// Score rates one item, retrying up to 3 times when the model returns malformed JSON
func (s *Scorer) Score(ctx context.Context, req scoring.Request) (domain.Score, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	prompt := s.buildPrompt(req)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: float32(s.config.Temperature),
			MaxTokens:   s.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: s.systemMsg},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		}

		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return domain.Score{}, fmt.Errorf("llm request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return domain.Score{}, fmt.Errorf("no response from llm")
		}

		score, err := parseResponse(resp.Choices[0].Message.Content)
		if err == nil {
			return score, nil
		}
		lastErr = err
		if !errors.Is(err, errBadJSON) {
			return domain.Score{}, err
		}
	}
	return domain.Score{}, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

func (s *Scorer) buildPrompt(req scoring.Request) string {
	var sb strings.Builder
	if req.Category != "" {
		sb.WriteString(fmt.Sprintf("Category: %s\n", req.Category))
	}
	if req.Link != "" {
		sb.WriteString(fmt.Sprintf("Link: %s\n", req.Link))
	}
	sb.WriteString(fmt.Sprintf("Title: %s\n", req.Title))
	content := []rune(strings.TrimSpace(req.Content))
	if len(content) > maxContentRunes {
		content = append(content[:maxContentRunes], []rune("...")...)
	}
	if len(content) > 0 {
		sb.WriteString(fmt.Sprintf("Content: %s\n", string(content)))
	}
	return sb.String()
}

// parseResponse extracts the verdict object, tolerating text around it
func parseResponse(content string) (domain.Score, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return domain.Score{}, fmt.Errorf("%w: no json object found in response", errBadJSON)
	}
	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return domain.Score{}, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if v.Importance == nil || v.Credibility == nil {
		return domain.Score{}, fmt.Errorf("%w: importance and credibility are required", errBadJSON)
	}
	return domain.Score{Importance: *v.Importance, Credibility: *v.Credibility}.Clamp(), nil
}
