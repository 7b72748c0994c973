// Package gemini provides a significance oracle backed by the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"crossmarket_backend/internal/feature/patterns/usecase"
)

const (
	// DefaultModel is the Gemini model used for significance judgments.
	DefaultModel = "gemini-2.5-flash"
)

// GeminiOracle asks Gemini whether a statistically marginal correlation is
// nonetheless meaningful. It is advisory only: callers fall back to the
// statistical decision whenever this client errors.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

var _ usecase.SignificanceOracle = (*GeminiOracle)(nil)

// NewGeminiOracle creates a GeminiOracle using application default credentials.
// Requires GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT and
// GOOGLE_CLOUD_LOCATION to be set.
func NewGeminiOracle(ctx context.Context) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiOracle{client: client, model: DefaultModel}, nil
}

// Judge returns the oracle's verdict on whether the pattern should be trusted
// for prediction. The response must start with YES or NO; anything else is a
// malformed-response error and the caller keeps the statistical decision.
func (g *GeminiOracle) Judge(ctx context.Context, driverSymbol, targetSymbol string, ev usecase.Evaluation) (bool, error) {
	prompt := fmt.Sprintf(
		"A correlation between overnight %s moves and next-session %s moves was measured over %d paired observations: "+
			"Pearson coefficient %.3f, directional agreement %.1f%%, average driver move %.2f%%, average target move %.2f%%. "+
			"Should this relationship be trusted for directional prediction? Answer YES or NO on the first line, then one short reason.",
		driverSymbol, targetSymbol, ev.SampleSize,
		ev.Coefficient, ev.DirectionalAccuracy, ev.AvgDriverMove, ev.AvgTargetMove)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return false, fmt.Errorf("gemini API request failed: %w", err)
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Text()))
	switch {
	case strings.HasPrefix(answer, "YES"):
		return true, nil
	case strings.HasPrefix(answer, "NO"):
		return false, nil
	default:
		return false, fmt.Errorf("malformed oracle response: %q", truncate(answer, 80))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
