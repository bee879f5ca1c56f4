package textgensvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/summary"
)

const openaiChatURL = "https://api.openai.com/v1/chat/completions"

type openaiGenerator struct {
	key    string
	model  string
	client *http.Client
}

var _ summary.TextGenerator = (*openaiGenerator)(nil)

func NewOpenAIGenerator(conf *core.Config) *openaiGenerator {
	timeout := conf.Summary.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &openaiGenerator{
		key:    conf.Summary.OpenAIAPIKey,
		model:  conf.Summary.OpenAIModel,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *openaiGenerator) Name() string { return "openai" }

type (
	openaiRequest struct {
		Model    string          `json:"model"`
		Messages []openaiMessage `json:"messages"`
	}
	openaiMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	openaiResponse struct {
		Choices []struct {
			Message openaiMessage `json:"message"`
		} `json:"choices"`
	}
)

func (g *openaiGenerator) Summarize(ctx context.Context, questionText string, notes []string) (string, error) {
	if g.key == "" {
		return "", errors.New("openai api key not configured")
	}

	body, err := json.Marshal(openaiRequest{
		Model: g.model,
		Messages: []openaiMessage{
			{Role: "system", Content: "You summarize contest questions against tutor notes for students."},
			{Role: "user", Content: questionPrompt(questionText, notes)},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding openai request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiChatURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building openai request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.key)

	res, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling openai")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("openai returned status %d", res.StatusCode)
	}

	var out openaiResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding openai response")
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
