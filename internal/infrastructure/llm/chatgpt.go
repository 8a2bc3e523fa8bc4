package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ArticleDesk/internal/analysis"
	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const defaultTimeout = 60 * time.Second

// Config defines how to contact an OpenAI-compatible chat completions API.
type Config struct {
	Endpoint      string
	Model         string
	FallbackModel string
	APIKey        string
	SystemPrompt  string
	Timeout       time.Duration
}

// ChatGPTClient implements ports.Analyzer and ports.Answerer.
type ChatGPTClient struct {
	endpoint      string
	model         string
	fallbackModel string
	apiKey        string
	systemPrompt  string
	httpClient    *http.Client
}

var (
	_ ports.Analyzer = (*ChatGPTClient)(nil)
	_ ports.Answerer = (*ChatGPTClient)(nil)
	_ ports.Grouper  = (*ChatGPTClient)(nil)
	_ ports.Profiler = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg Config) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChatGPTClient{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		apiKey:        cfg.APIKey,
		systemPrompt:  cfg.SystemPrompt,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Analyze asks the model for the structured JSON analysis of text.
func (c *ChatGPTClient) Analyze(ctx context.Context, text string) ([]byte, error) {
	content, err := c.complete(ctx, []message{
		{Role: "system", Content: analysisPrompt(c.systemPrompt)},
		{Role: "user", Content: text},
	}, true)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// Answer replies to a reviewer question about one article.
func (c *ChatGPTClient) Answer(ctx context.Context, articleContext, question string) (string, error) {
	return c.complete(ctx, []message{
		{Role: "system", Content: answerPrompt},
		{Role: "user", Content: "Article:\n" + articleContext + "\n\nQuestion: " + question},
	}, false)
}

// Group asks the model to cluster the article digest into themed groups.
func (c *ChatGPTClient) Group(ctx context.Context, digest string) ([]byte, error) {
	content, err := c.complete(ctx, []message{
		{Role: "system", Content: groupSystemPrompt},
		{Role: "user", Content: groupPrompt + "\n\n" + digest},
	}, true)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// Profile asks for a short, neutral role summary of person.
func (c *ChatGPTClient) Profile(ctx context.Context, articleContext, person string) (string, error) {
	question := fmt.Sprintf(profileQuestion, person)
	content, err := c.complete(ctx, []message{
		{Role: "system", Content: profileSystemPrompt},
		{Role: "user", Content: articleContext + "\n\nQuestion:\n" + question},
	}, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// complete tries the primary model and then, once, the fallback model.
func (c *ChatGPTClient) complete(ctx context.Context, messages []message, jsonMode bool) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: chatgpt client is nil", domain.ErrAnalysis)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%w: chatgpt client misconfigured", domain.ErrAnalysis)
	}

	content, err := c.send(ctx, c.model, messages, jsonMode)
	if err == nil {
		return content, nil
	}
	if c.fallbackModel == "" || c.fallbackModel == c.model || ctx.Err() != nil {
		return "", err
	}

	content, fallbackErr := c.send(ctx, c.fallbackModel, messages, jsonMode)
	if fallbackErr != nil {
		return "", fmt.Errorf("%w (primary: %v)", fallbackErr, err)
	}
	return content, nil
}

func (c *ChatGPTClient) send(ctx context.Context, model string, messages []message, jsonMode bool) (string, error) {
	payload := completionRequest{Model: model, Messages: messages, Temperature: 0.2}
	if jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrAnalysis, model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: %s returned %s: %s", domain.ErrAnalysis, model, resp.Status, strings.TrimSpace(string(detail)))
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode %s response: %v", domain.ErrAnalysis, model, err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %s returned no content", domain.ErrAnalysis, model)
	}
	return decoded.Choices[0].Message.Content, nil
}

const (
	groupSystemPrompt = "You are a senior fraud analyst that outputs JSON."
	groupPrompt       = `Group the articles below by commonality: the same fraud case, scheme, program or people.
Reply with one JSON object: {"groups": [{"group_title": "Descriptive Group Name", "article_ids": ["id_1", "id_2"]}]}.
Assign every article id to at least one group. Use specific titles such as "PPP Loan Fraud" or "Medicare Schemes".
When an article fits several groups, pick the most relevant one.`

	profileSystemPrompt = "You write precise one or two sentence role summaries that avoid mislabeling and do not infer guilt."
	profileQuestion     = "From the context, write one or two tight sentences naming %s's role (reporter, official, suspect, victim, prosecutor, commentator or similar) and their involvement. Do not imply guilt unless the context states it. If they only reported on the story, say so."
)

const answerPrompt = "You help a fraud analyst review news articles. Answer using only the article details provided; say so when the details do not cover the question."

func analysisPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt != "" {
		return prompt
	}
	return fmt.Sprintf(`You analyze news articles about fraud and misconduct. Reply with one JSON object with the keys:
article_title, date, date_verification, fraud_indicator (High, Medium, Low or Unknown), tl_dr (two sentences),
full_summary_bullets, history_overview, people_mentioned, organizations_involved, allegations,
current_situation, next_steps, prevention_strategies (objects with issue and prevention), discovery_questions.
All keys after tl_dr are JSON arrays. If the text is not a news article, set tl_dr to %q.`, analysis.BadLinkMarker)
}
