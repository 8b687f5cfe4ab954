// Package advisory asks a Gemini vision model for enhancement hints.
//
// The advisory is best effort. The enhance.Engine bounds every call with a
// timeout and falls back to its rule table on any failure, so nothing here
// retries.
package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

// previewDimension caps the image sent to the model.
const previewDimension = 1024

const systemPrompt = `You are a photo quality analyst. You inspect one image and recommend
corrective enhancements. Respond with a single JSON object and nothing else.`

const promptTemplate = `Analyze this image for quality enhancement. The requested enhancement type is: %s

Respond in JSON format:
{
  "image_type": "portrait/landscape/food/product/general",
  "quality_issues": ["blur", "low_contrast", "noise", "low_light", "overexposed"],
  "recommended_enhancements": ["sharpening", "contrast_enhancement", "noise_reduction", "brightness_adjustment", "color_saturation", "color_balance", "detail_enhancement"],
  "enhancement_parameters": {
    "sharpness": 1.0-2.0,
    "contrast": 1.0-2.0,
    "brightness": 0.8-1.5,
    "saturation": 0.8-1.5
  },
  "quality_improvement": 0.0-1.0,
  "confidence": 0.0-1.0
}

Only list enhancements the image needs. Focus on realistic improvements.`

// Prompt builds the request text, appending whatever the caller already
// knows about the image.
func Prompt(category enhance.Category, hints enhance.Hints) string {
	prompt := fmt.Sprintf(promptTemplate, category)
	if hints.Empty() {
		return prompt
	}

	var notes []string
	if hints.QualityScore != nil {
		notes = append(notes, fmt.Sprintf("- A prior quality estimate for this image is %.2f (0-1). Do not promise a quality_improvement above %.2f.",
			*hints.QualityScore, 1-*hints.QualityScore))
	}
	if len(hints.Issues) > 0 {
		names := make([]string, len(hints.Issues))
		for i, issue := range hints.Issues {
			names[i] = string(issue)
		}
		notes = append(notes, "- Known quality issues: "+strings.Join(names, ", ")+". Address them if you can see them.")
	}
	return prompt + "\n\nContext from the caller:\n" + strings.Join(notes, "\n")
}

// Client implements enhance.Advisor on top of the Gemini API.
type Client struct {
	genai *genai.Client
	model string
}

// Option customises a Client.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

// New creates a Client from cfg. It fails when no API key is configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg.AdvisoryAPIKey == "" {
		return nil, apperr.New(apperr.ValidationError, "advisory API key is not set")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.AdvisoryAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{genai: client, model: cfg.AdvisoryModel}, nil
}

// Advise sends a downscaled JPEG of buf to the model and converts its answer.
func (c *Client) Advise(ctx context.Context, buf imaging.PixelBuffer, category enhance.Category, hints enhance.Hints) (*enhance.Advice, error) {
	preview := imaging.Normalize(buf.Image(), previewDimension)
	data, err := imaging.EncodeBytes(preview, imaging.FormatJPEG, 85)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	temperature := float32(0.2)
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: imaging.FormatJPEG.MIMEType(), Data: data}},
		{Text: Prompt(category, hints)},
	}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, []*genai.Content{{Role: "user", Parts: parts}}, genConfig)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	log.Debug().
		Str("model", c.model).
		Str("category", string(category)).
		Dur("duration", time.Since(start)).
		Msg("advisory response received")

	parsed, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	return parsed.Advice()
}
