package assistant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultModel = "deepseek-ai/DeepSeek-R1-Distill-Qwen-14B"

	// AIPath is appended to the service base URL to reach the OpenAI compatible API.
	AIPath = "/api/v1/app/ai"

	completionsPath = "/chat/completions"
)

var completionTemplate = []byte(`{"model":"","messages":[{"role":"user","content":""}],"stream":false}`)

// ChatModel talks to an OpenAI compatible chat completions endpoint.
type ChatModel struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

var _ Model = (*ChatModel)(nil)

type Option func(m *ChatModel)

func WithClient(h *http.Client) Option {
	return func(m *ChatModel) {
		m.http = h
	}
}

func NewChatModel(baseURL, model, apiKey string, opts ...Option) *ChatModel {
	if model == "" {
		model = DefaultModel
	}

	m := &ChatModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: time.Second * 120},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *ChatModel) Model() string {
	return m.model
}

func (m *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := m.buildRequest(prompt)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	res, err := m.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	if res.StatusCode != http.StatusOK {
		if msg := gjson.GetBytes(b, "error.message"); msg.Exists() {
			return "", fmt.Errorf("status %d: %s", res.StatusCode, msg.String())
		}
		return "", fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	content := gjson.GetBytes(b, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("no completion in response: %s", strings.TrimSpace(string(b)))
	}

	return content.String(), nil
}

func (m *ChatModel) buildRequest(prompt string) ([]byte, error) {
	body, err := sjson.SetBytes(completionTemplate, "model", m.model)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "messages.0.content", prompt)
}
