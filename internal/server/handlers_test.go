package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, width, height, c), 0o644))
	return path
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	paramsJSON, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	require.NoError(t, err)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	require.NotNil(t, resp, "handleRequest returned nil")
	return resp
}

func contentOf(t *testing.T, resp *MCPResponse) []map[string]interface{} {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "Result should be a map")
	content, ok := result["content"].([]map[string]interface{})
	require.True(t, ok, "Result should carry content")
	require.NotEmpty(t, content)
	return content
}

// payloadOf decodes the JSON text block of a tool response.
func payloadOf(t *testing.T, resp *MCPResponse) map[string]interface{} {
	t.Helper()
	content := contentOf(t, resp)
	require.Equal(t, "text", content[0]["type"])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), &payload))
	return payload
}

func TestHandleToolsCall_Capabilities(t *testing.T) {
	s := newTestServer(t, config.Default())
	payload := payloadOf(t, callTool(t, s, "image_capabilities", nil))

	assert.Equal(t, float64(3), payload["max_batch_size"])
	assert.Len(t, payload["watermark_styles"], 6)
	assert.Equal(t, false, payload["advisory_enabled"])
	assert.NotEmpty(t, payload["quality_issues"])
}

func TestHandleToolsCall_EnhanceInline(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 120, 80, color.RGBA{128, 128, 128, 255})

	resp := callTool(t, s, "image_enhance", map[string]interface{}{"path": path})
	content := contentOf(t, resp)

	require.Len(t, content, 2)
	assert.Equal(t, "image", content[1]["type"])
	assert.Equal(t, "image/jpeg", content[1]["mimeType"])

	data, err := imaging.DecodeBase64(content[1]["data"].(string))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 80, cfg.Height)

	payload := payloadOf(t, resp)
	assert.NotEmpty(t, payload["applied_effects"], "expected applied effects for a flat gray image")
}

func TestHandleToolsCall_EnhanceWithHints(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 64, 64, color.RGBA{128, 128, 128, 255})

	payload := payloadOf(t, callTool(t, s, "image_enhance", map[string]interface{}{
		"path":          path,
		"quality_score": 0.9,
		"issues":        []interface{}{"noise"},
	}))

	decision, ok := payload["decision"].(map[string]interface{})
	require.True(t, ok, "decision missing")
	assert.Contains(t, decision["issues"], "noise")
	assert.InDelta(t, 0.1, payload["quality_improvement"], 1e-9)
}

func TestHandleToolsCall_EnhanceToFile(t *testing.T) {
	s := newTestServer(t, config.Default())
	in := createTestImageFile(t, 64, 48, color.RGBA{30, 30, 30, 255})
	out := filepath.Join(t.TempDir(), "nested", "result.png")

	resp := callTool(t, s, "image_enhance", map[string]interface{}{
		"path":        in,
		"output_path": out,
		"category":    "low_light",
	})
	assert.Len(t, contentOf(t, resp), 1, "no image block when writing to a file")

	payload := payloadOf(t, resp)
	assert.Equal(t, out, payload["output_path"])
	assert.Equal(t, "image/png", payload["mime_type"], "format follows the file extension")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestHandleToolsCall_WatermarkFixedZone(t *testing.T) {
	s := newTestServer(t, config.Default())
	b64 := imaging.EncodeBase64(encodePNG(t, 400, 300, color.RGBA{20, 60, 120, 255}))

	payload := payloadOf(t, callTool(t, s, "image_watermark", map[string]interface{}{
		"image_base64": b64,
		"text":         "Studio",
		"position":     "top_left",
		"style":        "vintage_stamp",
		"opacity":      0.6,
		"format":       "png",
	}))

	placement, ok := payload["placement"].(map[string]interface{})
	require.True(t, ok, "placement missing from payload")
	assert.Equal(t, "top_left", placement["zone"])
	assert.Equal(t, []interface{}{"watermark:vintage_stamp"}, payload["applied_effects"])
}

func TestHandleToolsCall_ValidationErrors(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 32, 32, color.White)
	out := filepath.Join(t.TempDir(), "out.jpg")

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"unknown tool", "image_resize", map[string]interface{}{"path": path}},
		{"no source", "image_enhance", map[string]interface{}{}},
		{"two sources", "image_enhance", map[string]interface{}{"path": path, "url": "http://example.com/a.png"}},
		{"blank path beside base64", "image_enhance", map[string]interface{}{"path": "   ", "image_base64": "   "}},
		{"unknown category", "image_enhance", map[string]interface{}{"path": path, "category": "sports"}},
		{"unknown issue", "image_enhance", map[string]interface{}{"path": path, "issues": []interface{}{"glare"}}},
		{"quality score out of range", "image_enhance", map[string]interface{}{"path": path, "quality_score": 1.5}},
		{"format disagrees with output path", "image_enhance", map[string]interface{}{"path": path, "format": "png", "output_path": out}},
		{"unknown style", "image_watermark", map[string]interface{}{"path": path, "style": "comic"}},
		{"blank text", "image_watermark", map[string]interface{}{"path": path, "text": "  "}},
		{"opacity out of range", "image_watermark", map[string]interface{}{"path": path, "opacity": 1.5}},
		{"bad format", "image_watermark", map[string]interface{}{"path": path, "format": "gif"}},
		{"empty batch", "image_watermark_batch", map[string]interface{}{"images": []interface{}{}}},
		{"batch too large", "image_watermark_batch", map[string]interface{}{"images": []interface{}{
			map[string]interface{}{"path": path},
			map[string]interface{}{"path": path},
			map[string]interface{}{"path": path},
			map[string]interface{}{"path": path},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			require.NotNil(t, resp.Error, "expected an error response")
			assert.Equal(t, -32602, resp.Error.Code)
		})
	}
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "nothing is written on a rejected request")
}

func TestHandleToolsCall_DecodeError(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	resp := callTool(t, s, "image_enhance", map[string]interface{}{"path": path})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32000, resp.Error.Code)
}

func TestHandleToolsCall_WatermarkBatch(t *testing.T) {
	s := newTestServer(t, config.Default())
	good := createTestImageFile(t, 300, 200, color.RGBA{200, 200, 200, 255})
	outDir := t.TempDir()

	payload := payloadOf(t, callTool(t, s, "image_watermark_batch", map[string]interface{}{
		"images": []interface{}{
			map[string]interface{}{"path": good},
			map[string]interface{}{"image_base64": imaging.EncodeBase64([]byte("garbage"))},
			map[string]interface{}{"image_base64": imaging.EncodeBase64(encodePNG(t, 200, 300, color.Black))},
		},
		"output_dir": outDir,
		"format":     "png",
		"text":       "Batch",
	}))

	assert.Equal(t, float64(2), payload["processed_count"])
	assert.Equal(t, float64(3), payload["total_requested"])

	results := payload["results"].([]interface{})
	require.Len(t, results, 3)
	failed := results[1].(map[string]interface{})
	assert.Equal(t, false, failed["success"])
	assert.NotEmpty(t, failed["error"])

	for _, i := range []int{0, 2} {
		item := results[i].(map[string]interface{})
		p, _ := item["output_path"].(string)
		require.NotEmpty(t, p, "item %d: no output_path", i)
		assert.FileExists(t, p)
	}
}

func TestHandleToolsCall_WatermarkBatchWriteFailure(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 300, 200, color.RGBA{90, 90, 90, 255})

	// A regular file where the output directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	payload := payloadOf(t, callTool(t, s, "image_watermark_batch", map[string]interface{}{
		"images": []interface{}{
			map[string]interface{}{"path": path},
			map[string]interface{}{"path": path},
		},
		"output_dir": filepath.Join(blocker, "out"),
	}))

	assert.Equal(t, float64(0), payload["processed_count"])
	results := payload["results"].([]interface{})
	require.Len(t, results, 2)
	for _, r := range results {
		item := r.(map[string]interface{})
		assert.Equal(t, false, item["success"])
		assert.NotEmpty(t, item["error"])
		assert.NotContains(t, item, "result")
		assert.NotContains(t, item, "output_path")
	}
}

func TestHandleToolsCall_WatermarkBatchInline(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 300, 200, color.RGBA{90, 90, 90, 255})

	resp := callTool(t, s, "image_watermark_batch", map[string]interface{}{
		"images": []interface{}{
			map[string]interface{}{"path": path},
			map[string]interface{}{"path": path},
		},
	})
	assert.Len(t, contentOf(t, resp), 3, "text plus 2 images")
}

func TestHandleToolsCall_Analyze(t *testing.T) {
	s := newTestServer(t, config.Default())
	path := createTestImageFile(t, 320, 240, color.RGBA{128, 128, 128, 255})

	payload := payloadOf(t, callTool(t, s, "image_analyze", map[string]interface{}{"path": path}))

	metrics, ok := payload["metrics"].(map[string]interface{})
	require.True(t, ok, "metrics missing")
	assert.Equal(t, float64(320), metrics["width"])
	assert.Equal(t, float64(240), metrics["height"])

	zones, _ := payload["ranked_zones"].([]interface{})
	require.Len(t, zones, 5)
	assert.Equal(t, "bottom_right", zones[0])
	assert.IsType(t, map[string]interface{}{}, payload["style_recommendation"])
	assert.Len(t, payload["palette"], 1, "palette of a uniform image")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, config.Default())
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}
