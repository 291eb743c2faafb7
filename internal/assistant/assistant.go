// Package assistant answers questions about a user's private data through a
// hosted chat model.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrBlankQuestion = errors.New("question is blank")
	ErrNoUserData    = errors.New("no user data available")
)

// Warning returns the message shown to the user when err is an input problem
// detected before any call to the model.
func Warning(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrBlankQuestion):
		return "Please enter a question.", true
	case errors.Is(err, ErrNoUserData):
		return "No user data available.", true
	}
	return "", false
}

// Model completes a single user message.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Assistant struct {
	model Model
}

func New(m Model) *Assistant {
	return &Assistant{model: m}
}

// Ask sends the question and the data to the model and returns its raw answer.
func (a *Assistant) Ask(ctx context.Context, question string, data map[string]any) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrBlankQuestion
	}
	if len(data) == 0 {
		return "", ErrNoUserData
	}

	prompt, err := BuildPrompt(question, data)
	if err != nil {
		return "", err
	}

	slog.Debug("asking the model", "prompt_length", len(prompt))

	answer, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to answer the question: %w", err)
	}
	return answer, nil
}

// BuildPrompt embeds the data as indented JSON into the instruction template.
// Keys are sorted so the same data always produces the same prompt.
func BuildPrompt(question string, data map[string]any) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("failed to serialize user data: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are an AI assistant that answers questions about the user's private data. ")
	sb.WriteString("Here is the user's data in JSON format:\n")
	sb.WriteString(strings.TrimSuffix(buf.String(), "\n"))
	sb.WriteString("\n")
	sb.WriteString("User question: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	sb.WriteString("Answer the question as accurately as possible using only the provided data. ")
	sb.WriteString("If the answer is not present in the data, make an educated guess based on the context or say 'I do not have that information.' ")
	sb.WriteString("Always provide a response to the user's question.")

	return sb.String(), nil
}
