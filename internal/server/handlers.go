package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
	"github.com/ironsheep/pixelfly/internal/render"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_enhance").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// imageContent is an MCP image content block.
type imageContent struct {
	Data     []byte
	MIMEType string
}

// toolResult is what a handler produces: a JSON payload and any images to
// attach alongside it.
type toolResult struct {
	payload interface{}
	images  []imageContent
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}, {"type": "image", ...}]
//	}
//
// Validation failures return code -32602, everything else -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	res, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		code := -32000
		if apperr.Is(err, apperr.ValidationError) {
			code = -32602
		}
		log.Warn().Err(err).Str("tool", params.Name).Msg("tool call failed")
		return errorResponse(req.ID, code, "Tool execution failed", err.Error())
	}

	content := []map[string]interface{}{
		{
			"type": "text",
			"text": mustMarshalJSON(res.payload),
		},
	}
	for _, img := range res.images {
		content = append(content, map[string]interface{}{
			"type":     "image",
			"data":     imaging.EncodeBase64(img.Data),
			"mimeType": img.MIMEType,
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": content,
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (*toolResult, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "image_enhance":
		return s.handleImageEnhance(ctx, args)
	case "image_watermark":
		return s.handleImageWatermark(ctx, args)
	case "image_watermark_batch":
		return s.handleImageWatermarkBatch(ctx, args)
	case "image_analyze":
		return s.handleImageAnalyze(ctx, args)
	case "image_capabilities":
		return &toolResult{payload: s.orch.Capabilities()}, nil
	default:
		return nil, apperr.New(apperr.ValidationError, "unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return apperr.Wrap(apperr.ValidationError, err, "invalid arguments")
	}
	return nil
}

// outputArgs are shared by tools that produce an image.
type outputArgs struct {
	OutputPath string `json:"output_path"`
	Format     string `json:"format"`
}

func (a outputArgs) format() (imaging.Format, error) {
	return imaging.OutputFormat(a.Format, a.OutputPath)
}

// imageResponse is the payload returned for a processed image.
type imageResponse struct {
	*orchestrator.Result
	OutputPath string `json:"output_path,omitempty"`
}

// deliver writes the result to path when given, otherwise attaches it as
// image content.
func deliver(res *orchestrator.Result, path string) (*toolResult, error) {
	out := &toolResult{payload: imageResponse{Result: res, OutputPath: path}}
	if path == "" {
		out.images = []imageContent{{Data: res.Image, MIMEType: res.MIMEType}}
		return out, nil
	}
	if err := writeFile(path, res.Image); err != nil {
		return nil, err
	}
	return out, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// === Enhancement ===

type imageEnhanceArgs struct {
	imaging.Source
	outputArgs
	enhance.Hints
	Category string `json:"category"`
}

func (s *Server) handleImageEnhance(ctx context.Context, args json.RawMessage) (*toolResult, error) {
	var a imageEnhanceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	category, err := enhance.ParseCategory(a.Category)
	if err != nil {
		return nil, err
	}
	format, err := a.format()
	if err != nil {
		return nil, err
	}

	st, err := s.orch.Run(ctx, orchestrator.Job{
		Task:     orchestrator.TaskEnhance,
		Source:   a.Source,
		Format:   format,
		Category: category,
		Hints:    a.Hints,
	})
	if err != nil {
		return nil, err
	}
	return deliver(st.Result(), a.OutputPath)
}

// === Watermarking ===

type imageWatermarkArgs struct {
	imaging.Source
	outputArgs
	render.Options
}

func (s *Server) handleImageWatermark(ctx context.Context, args json.RawMessage) (*toolResult, error) {
	var a imageWatermarkArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	spec, err := a.Options.Spec()
	if err != nil {
		return nil, err
	}
	format, err := a.format()
	if err != nil {
		return nil, err
	}

	st, err := s.orch.Run(ctx, orchestrator.Job{
		Task:      orchestrator.TaskWatermark,
		Source:    a.Source,
		Format:    format,
		Watermark: spec,
	})
	if err != nil {
		return nil, err
	}
	return deliver(st.Result(), a.OutputPath)
}

type imageWatermarkBatchArgs struct {
	render.Options
	Images    []imaging.Source `json:"images"`
	OutputDir string           `json:"output_dir"`
	Format    string           `json:"format"`
}

type batchItemResponse struct {
	orchestrator.BatchItem
	OutputPath string `json:"output_path,omitempty"`
}

type batchResponse struct {
	Items          []batchItemResponse `json:"results"`
	ProcessedCount int                 `json:"processed_count"`
	TotalRequested int                 `json:"total_requested"`
	Elapsed        float64             `json:"batch_processing_time"`
}

func (s *Server) handleImageWatermarkBatch(ctx context.Context, args json.RawMessage) (*toolResult, error) {
	var a imageWatermarkBatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	spec, err := a.Options.Spec()
	if err != nil {
		return nil, err
	}
	format, err := imaging.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}

	br, err := s.orch.RunBatch(ctx, a.Images, spec, format)
	if err != nil {
		return nil, err
	}

	out := &toolResult{}
	resp := batchResponse{
		ProcessedCount: br.ProcessedCount,
		TotalRequested: br.TotalRequested,
		Elapsed:        br.Elapsed,
	}
	for _, it := range br.Items {
		item := batchItemResponse{BatchItem: it}
		if it.Success {
			if a.OutputDir != "" {
				item.OutputPath = filepath.Join(a.OutputDir, fmt.Sprintf("watermarked_%d.%s", it.Index, format))
				if err := writeFile(item.OutputPath, it.Result.Image); err != nil {
					item.Success = false
					item.Error = err.Error()
					item.Result = nil
					item.OutputPath = ""
					resp.ProcessedCount--
				}
			} else {
				out.images = append(out.images, imageContent{Data: it.Result.Image, MIMEType: it.Result.MIMEType})
			}
		}
		resp.Items = append(resp.Items, item)
	}
	out.payload = resp
	return out, nil
}

// === Analysis ===

type imageAnalyzeArgs struct {
	imaging.Source
	Category string `json:"category"`
}

func (s *Server) handleImageAnalyze(ctx context.Context, args json.RawMessage) (*toolResult, error) {
	var a imageAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	category, err := enhance.ParseCategory(a.Category)
	if err != nil {
		return nil, err
	}

	res, err := s.orch.Analyze(ctx, a.Source, category)
	if err != nil {
		return nil, err
	}
	return &toolResult{payload: res}, nil
}
