package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const promptHeader = "You review candidate recurring payments detected in a bank statement.\n\n" +
	"Each numbered line below is one candidate: name | amount | frequency | type | count | sample descriptions.\n\n" +
	"For every candidate that needs it, return a correction object with:\n" +
	"- \"index\": the line number\n" +
	"- \"display_name\": a clean merchant name, e.g. \"Netflix\" for \"NETFLIX.COM 866-579\"\n" +
	"- \"payment_type\": one of subscription, housing, utility, insurance, professional, debt, savings, transfer, unknown\n" +
	"- \"confidence_delta\": a number between -0.2 and 0.2; negative if this is probably not a recurring bill\n\n" +
	"Return ONLY a raw JSON array. Do NOT use Markdown or code fences. Return [] if nothing needs correcting.\n\n"

// generator is the part of the genai client the classifier uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini classifies patterns with a Gemini model.
type Gemini struct {
	models generator
	model  string
}

// NewGemini creates a Gemini API client. An empty apiKey lets the SDK read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: client.Models, model: model}, nil
}

func (g *Gemini) Classify(ctx context.Context, summary string) ([]Correction, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, nil
	}
	temperature := float32(0.1)
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(promptHeader+summary), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini classify: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, errors.New("gemini classify: empty response from model")
	}
	var corrections []Correction
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &corrections); err != nil {
		return nil, fmt.Errorf("gemini classify: unmarshal JSON: %w", err)
	}
	return corrections, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
