package advisory

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/pixelfly/internal/enhance"
)

// Response is the JSON document the vision model is asked to return.
type Response struct {
	ImageType               string             `json:"image_type"`
	QualityIssues           []string           `json:"quality_issues"`
	RecommendedEnhancements []string           `json:"recommended_enhancements"`
	Parameters              map[string]float64 `json:"enhancement_parameters"`
	QualityImprovement      *float64           `json:"quality_improvement"`
	Confidence              *float64           `json:"confidence"`
}

type vocabEntry struct {
	kind     enhance.OpKind
	param    string
	def      float64
	min, max float64
}

// vocabulary maps advisory enhancement names to operations. param names the
// enhancement_parameters key that tunes the operation, if any.
var vocabulary = map[string]vocabEntry{
	"sharpening":            {enhance.Sharpen, "sharpness", enhance.DefaultSharpen, 1, 2},
	"contrast_enhancement":  {enhance.ContrastAdjust, "contrast", enhance.DefaultContrast, 1, 2},
	"brightness_adjustment": {enhance.BrightnessAdjust, "brightness", enhance.BrightnessBoost, 0.8, 1.5},
	"color_saturation":      {enhance.SaturationAdjust, "saturation", enhance.DefaultSaturation, 0.8, 1.5},
	"color_enhancement":     {enhance.SaturationAdjust, "saturation", enhance.DefaultSaturation, 0.8, 1.5},
	"noise_reduction":       {enhance.NoiseReduce, "", enhance.DefaultNoiseReduce, 0, 0},
	"color_balance":         {enhance.ColorBalance, "", enhance.DefaultColorBalance, 0, 0},
	"detail_enhancement":    {enhance.DetailBoost, "", enhance.DefaultDetailBoost, 0, 0},
}

// Advice converts the response into engine advice. Unknown enhancement
// names are ignored; parameters are clamped to their documented ranges.
// A response without any recognised enhancement is an error.
func (r Response) Advice() (*enhance.Advice, error) {
	var ops []enhance.Operation
	for _, name := range r.RecommendedEnhancements {
		entry, ok := vocabulary[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		param := entry.def
		if entry.param != "" {
			if v, ok := r.Parameters[entry.param]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				param = math.Max(entry.min, math.Min(entry.max, v))
			}
		}
		ops = append(ops, enhance.Operation{Kind: entry.kind, Param: param})
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no recognised enhancements in %v", r.RecommendedEnhancements)
	}

	return &enhance.Advice{
		Operations:  ops,
		Improvement: r.QualityImprovement,
		Confidence:  r.Confidence,
	}, nil
}

// stripFences removes a surrounding ```json ... ``` block, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// extractObject returns the outermost {...} in text.
func extractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", fmt.Errorf("no closing } found")
	}
	return text[start : end+1], nil
}

// ParseResponse extracts and decodes a Response from raw model output, which
// may be wrapped in markdown fences or surrounded by prose.
func ParseResponse(raw string) (Response, error) {
	obj, err := extractObject(stripFences(raw))
	if err != nil {
		return Response{}, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var resp Response
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		preview := obj
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return Response{}, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return resp, nil
}
