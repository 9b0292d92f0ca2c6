package headcount

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ashureev/rollcall/internal/domain"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOracle asks a Gemini model to count people in the image.
type GeminiOracle struct {
	models contentGenerator
	model  string
}

// NewGeminiOracle creates a client for the Gemini API.
func NewGeminiOracle(ctx context.Context, apiKey, model string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiOracle(client.Models, model), nil
}

func newGeminiOracle(models contentGenerator, model string) *GeminiOracle {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiOracle{models: models, model: model}
}

// Estimate sends the image with the counting prompt.
func (o *GeminiOracle) Estimate(ctx context.Context, jpeg []byte) (int, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(jpeg, "image/jpeg"),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}

	resp, err := o.models.GenerateContent(ctx, o.model, contents, nil)
	if err != nil {
		return 0, callError(ctx, err)
	}
	if resp == nil {
		return 0, fmt.Errorf("%w: empty response", domain.ErrOracleMalformedResponse)
	}
	return ParseCount([]byte(resp.Text()))
}
