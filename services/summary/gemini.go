package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API, rotating through the configured keys
// when a key runs into quota limits.
type GeminiGenerator struct {
	apiKeys    []string
	model      string
	mu         sync.Mutex
	currentKey int
	logger     *logrus.Logger
}

func NewGeminiGenerator(apiKeys []string, model string) (*GeminiGenerator, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	return &GeminiGenerator{
		apiKeys: apiKeys,
		model:   model,
		logger:  logrus.StandardLogger(),
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	attempts := len(g.apiKeys)
	var lastErr error

	for i := 0; i < attempts; i++ {
		key, index := g.key()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			g.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			if isQuotaError(err) {
				g.logger.WithField("key_index", index).Warn("Gemini key rate limited, rotating")
				g.rotateKey()
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var b strings.Builder
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					b.WriteString(part.Text)
				}
			}
			return b.String(), nil
		}

		return "", fmt.Errorf("empty response from Gemini")
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (g *GeminiGenerator) key() (string, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apiKeys[g.currentKey], g.currentKey
}

func (g *GeminiGenerator) rotateKey() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentKey = (g.currentKey + 1) % len(g.apiKeys)
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
