package tagger

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// llmPrompt is a few-shot prompt constraining the model to emit exactly the
// topics, nothing conversational.
const llmPrompt = `Task: Extract exactly 2 broad semantic topics from the statement below. Output ONLY the topics separated by a comma, nothing else.

Examples:
Statement: I have a severe peanut allergy
Topics: dietary restriction, health condition

Statement: I love Italian cuisine
Topics: food preference, cuisine type

Statement: I'm learning to play guitar
Topics: hobby, music

Statement: %s
Topics:`

// LLM tags by asking a language model. It is the highest-quality and most
// expensive delegate; wrap it in Failover so its errors stay invisible.
type LLM struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewLLM creates the model-backed tagger.
func NewLLM(client *anthropic.Client, model string) *LLM {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &LLM{client: client, model: anthropic.Model(model)}
}

// Tag prompts the model and parses its comma-separated topic list.
func (l *LLM) Tag(ctx context.Context, text string) ([]string, error) {
	resp, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: 64,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(llmPrompt, text))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm tagger: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	tags := clampTags(parseTopicList(out))
	if len(tags) == 0 {
		return nil, fmt.Errorf("llm tagger: no usable tags in %q", out)
	}
	return tags, nil
}

// TagBatch issues one request per text. The model call dominates latency
// either way and per-text calls keep order handling trivial.
func (l *LLM) TagBatch(ctx context.Context, texts []string) ([][]string, error) {
	out := make([][]string, len(texts))
	for i, t := range texts {
		tags, err := l.Tag(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = tags
	}
	return out, nil
}

// parseTopicList extracts topic strings from model output, tolerating
// numbered lists and newline separation.
func parseTopicList(s string) []string {
	s = strings.TrimSpace(s)
	// First line only; anything after is the model rambling.
	if i := strings.IndexByte(s, '\n'); i >= 0 && strings.Contains(s[:i], ",") {
		s = s[:i]
	}

	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Split(s, "\n")
	}

	var topics []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimLeft(p, "0123456789. ")
		if p != "" {
			topics = append(topics, p)
		}
	}
	return topics
}
