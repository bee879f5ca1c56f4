package textgensvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/summary"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

type geminiGenerator struct {
	key    string
	model  string
	base   string
	client *http.Client
}

var _ summary.TextGenerator = (*geminiGenerator)(nil)

func NewGeminiGenerator(conf *core.Config) *geminiGenerator {
	base := conf.Summary.GeminiAPIBase
	if base == "" {
		base = defaultGeminiBase
	}
	timeout := conf.Summary.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &geminiGenerator{
		key:    conf.Summary.GeminiAPIKey,
		model:  conf.Summary.GeminiModel,
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (g *geminiGenerator) Name() string { return "gemini" }

type (
	geminiRequest struct {
		Contents []geminiContent `json:"contents"`
	}
	geminiContent struct {
		Parts []geminiPart `json:"parts"`
	}
	geminiPart struct {
		Text string `json:"text"`
	}
	geminiResponse struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
)

func (g *geminiGenerator) Summarize(ctx context.Context, questionText string, notes []string) (string, error) {
	if g.key == "" {
		return "", errors.New("gemini api key not configured")
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: questionPrompt(questionText, notes)}}}},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding gemini request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.base, g.model, g.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building gemini request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling gemini")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("gemini returned status %d", res.StatusCode)
	}

	var out geminiResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding gemini response")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}

func questionPrompt(questionText string, notes []string) string {
	return fmt.Sprintf(
		"Provide a complete, well-explained answer and concise summary for the following.\n"+
			"Question: %s\nNotes: %s\n\n"+
			"Respond clearly and begin with 'Answer:' followed by explanation and examples.",
		questionText, strings.Join(notes, "\n"),
	)
}
