package server

import (
	"github.com/ironsheep/pixelfly/internal/orchestrator"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sourceProperties are accepted by every tool that reads an image.
func sourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image data, optionally with a data URL prefix",
		},
		"url": map[string]interface{}{
			"type":        "string",
			"description": "http(s) URL of the image",
		},
	}
}

func outputProperties(caps orchestrator.Capabilities, props map[string]interface{}) map[string]interface{} {
	props["output_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional file to write the result to. When omitted the result is returned as base64",
	}
	props["format"] = map[string]interface{}{
		"type":        "string",
		"enum":        caps.Formats,
		"description": "Output encoding. Default jpeg",
		"default":     caps.Defaults.Format,
	}
	return props
}

func watermarkProperties(caps orchestrator.Capabilities) map[string]interface{} {
	return map[string]interface{}{
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Watermark text",
			"default":     caps.Defaults.Text,
		},
		"position": map[string]interface{}{
			"type":        "string",
			"enum":        caps.Positions,
			"description": "Fixed zone or placement strategy. smart_adaptive picks the calmest corner",
			"default":     caps.Defaults.Position,
		},
		"style": map[string]interface{}{
			"type":    "string",
			"enum":    caps.Styles,
			"default": caps.Defaults.Style,
		},
		"size": map[string]interface{}{
			"type":    "string",
			"enum":    caps.Sizes,
			"default": caps.Defaults.Size,
		},
		"opacity": map[string]interface{}{
			"type":        "number",
			"minimum":     0,
			"maximum":     1,
			"description": "Watermark opacity from 0 to 1",
			"default":     caps.Defaults.Opacity,
		},
		"color": map[string]interface{}{
			"type":        "string",
			"description": "Color name or #rrggbb. Unknown values render white",
			"default":     "white",
		},
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools. Enumerations are taken
// from caps so the schema always matches what the engine accepts.
func GetToolDefinitions(caps orchestrator.Capabilities) []Tool {
	return []Tool{
		{
			Name:        "image_enhance",
			Description: "Analyze an image and apply an automatic enhancement plan (sharpening, contrast, brightness, saturation, noise reduction, color balance, detail boost). Returns the enhanced image and the effects applied.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": outputProperties(caps, merge(sourceProperties(), map[string]interface{}{
					"category": map[string]interface{}{
						"type":        "string",
						"enum":        caps.Categories,
						"description": "Photo category used to tune the plan. Default auto",
						"default":     "auto",
					},
					"quality_score": map[string]interface{}{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"description": "Optional prior quality estimate (0-1). Caps the reported improvement at 1-quality_score",
					},
					"issues": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "enum": caps.Issues},
						"description": "Optional quality issues already known for this image; they are corrected even when not measured",
					},
				})),
			},
		},
		{
			Name:        "image_watermark",
			Description: "Place a styled text watermark on an image. The position is chosen from image content unless a fixed zone is given.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": outputProperties(caps, merge(sourceProperties(), watermarkProperties(caps))),
			},
		},
		{
			Name:        "image_watermark_batch",
			Description: "Apply the same watermark to several images in parallel. Each image succeeds or fails independently.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(watermarkProperties(caps), map[string]interface{}{
					"images": map[string]interface{}{
						"type":        "array",
						"maxItems":    caps.MaxBatchSize,
						"minItems":    1,
						"description": "Images to watermark. Each item takes path, image_base64 or url",
						"items": map[string]interface{}{
							"type":       "object",
							"properties": sourceProperties(),
						},
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Optional directory for the results. When omitted results are returned as base64",
					},
					"format": map[string]interface{}{
						"type":    "string",
						"enum":    caps.Formats,
						"default": caps.Defaults.Format,
					},
				}),
				"required": []string{"images"},
			},
		},
		{
			Name:        "image_analyze",
			Description: "Measure brightness, contrast, sharpness, noise and dynamic range, score watermark zones, list dominant colors and existing text regions, and suggest an enhancement plan without modifying the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(sourceProperties(), map[string]interface{}{
					"category": map[string]interface{}{
						"type":    "string",
						"enum":    caps.Categories,
						"default": "auto",
					},
				}),
			},
		},
		{
			Name:        "image_capabilities",
			Description: "List supported enhancement categories, watermark styles, positions, sizes, colors and the batch limit.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
