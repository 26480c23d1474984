// Package categorize suggests a category for a transaction description using
// a Gemini model.
package categorize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/logger"
)

// DefaultModelName is the Gemini model used for suggestions.
const DefaultModelName = "gemini-2.5-flash"

// Model provides an interface for sending a prompt to a language model.
// This interface enables mocking of the model in tests.
type Model interface {
	// Generate returns the text response for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiModel is the concrete implementation of Model backed by Gemini.
type GeminiModel struct {
	client *genai.Client
	name   string
}

// NewGeminiModel creates a Gemini client. The API key falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables when empty.
func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModelName
	}
	return &GeminiModel{client: client, name: modelName}, nil
}

// Generate implements the Model interface.
func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.name, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}
	return resp.Text(), nil
}

// Ensure GeminiModel implements Model interface.
var _ Model = (*GeminiModel)(nil)

// Categorizer maps descriptions to catalog slugs.
type Categorizer struct {
	model Model
}

// New creates a Categorizer.
func New(model Model) *Categorizer {
	return &Categorizer{model: model}
}

// Suggest returns the slug of the earn (money in) or spend catalog that best
// fits description. Anything the model says outside the catalog becomes
// "other"; model errors are returned.
func (c *Categorizer) Suggest(ctx context.Context, description string, earn bool) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.OtherCategory, nil
	}

	raw, err := c.model.Generate(ctx, buildPrompt(description, earn))
	if err != nil {
		return "", fmt.Errorf("Suggest: %w", err)
	}

	slug := cleanAnswer(raw)
	if !domain.IsCategory(slug, earn) {
		log := logger.FromContext(ctx)
		log.Debug().
			Str("description", description).
			Str("answer", raw).
			Msg("Model answer outside category catalog")
		return domain.OtherCategory, nil
	}
	return slug, nil
}

func buildPrompt(description string, earn bool) string {
	var b strings.Builder

	direction := "money spent by"
	if earn {
		direction = "money received by"
	}
	fmt.Fprintf(&b, "You categorize entries in a child's savings ledger. The entry is %s the child.\n\n", direction)
	b.WriteString("Categories (slug: label):\n")
	for _, cat := range domain.Categories(earn) {
		fmt.Fprintf(&b, "- %s: %s\n", cat.Slug, cat.Label)
	}
	fmt.Fprintf(&b, "\nEntry description: %q\n\n", description)
	b.WriteString("Answer with exactly one slug from the list and nothing else.\n")
	return b.String()
}

// cleanAnswer strips code fences, quotes and punctuation models like to add.
func cleanAnswer(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i != -1 {
		s = s[:i]
	}
	s = strings.Trim(s, " \t\"'`.*")
	return strings.ToLower(s)
}
