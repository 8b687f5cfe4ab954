package advisory

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain", `{"recommended_enhancements": ["sharpening"]}`, false},
		{"fenced", "```json\n{\"recommended_enhancements\": [\"sharpening\"]}\n```", false},
		{"prose", `Here you go: {"recommended_enhancements": ["sharpening"]} hope it helps`, false},
		{"no object", "I cannot analyze this image.", true},
		{"broken", `{"recommended_enhancements": [}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"sharpening"}, resp.RecommendedEnhancements)
		})
	}
}

func TestResponse_Advice(t *testing.T) {
	conf := 0.7
	resp := Response{
		RecommendedEnhancements: []string{"sharpening", "Color_Saturation", "lens_flare_removal", "noise_reduction"},
		Parameters: map[string]float64{
			"sharpness":  5,
			"saturation": 0.5,
		},
		Confidence: &conf,
	}

	advice, err := resp.Advice()
	require.NoError(t, err)

	assert.Equal(t, []enhance.Operation{
		{Kind: enhance.Sharpen, Param: 2},
		{Kind: enhance.SaturationAdjust, Param: 0.8},
		{Kind: enhance.NoiseReduce, Param: enhance.DefaultNoiseReduce},
	}, advice.Operations)
	assert.Equal(t, &conf, advice.Confidence)
	assert.Nil(t, advice.Improvement)
}

func TestResponse_AdviceDefaultsParameters(t *testing.T) {
	advice, err := Response{RecommendedEnhancements: []string{"contrast_enhancement"}}.Advice()
	require.NoError(t, err)
	assert.Equal(t, enhance.DefaultContrast, advice.Operations[0].Param)
}

func TestResponse_AdviceWithoutKnownOperations(t *testing.T) {
	_, err := Response{RecommendedEnhancements: []string{"vignette"}}.Advice()
	assert.Error(t, err)

	_, err = Response{}.Advice()
	assert.Error(t, err)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), config.Default())
	assert.True(t, apperr.Is(err, apperr.ValidationError))
}

// geminiServer answers generateContent calls with the given model text.
func geminiServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
			}},
		})
	}))
}

func testBuffer() imaging.PixelBuffer {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return imaging.Own(img)
}

func TestClient_Advise(t *testing.T) {
	srv := geminiServer(t, `{"recommended_enhancements": ["sharpening", "color_balance"], "enhancement_parameters": {"sharpness": 1.5}, "confidence": 0.9}`)
	defer srv.Close()

	cfg := config.Default()
	cfg.AdvisoryAPIKey = "test-key"

	client, err := New(context.Background(), cfg, WithBaseURL(srv.URL))
	require.NoError(t, err)

	advice, err := client.Advise(context.Background(), testBuffer(), enhance.Portrait, enhance.Hints{})
	require.NoError(t, err)

	assert.Equal(t, []enhance.Operation{
		{Kind: enhance.Sharpen, Param: 1.5},
		{Kind: enhance.ColorBalance, Param: enhance.DefaultColorBalance},
	}, advice.Operations)
	require.NotNil(t, advice.Confidence)
	assert.Equal(t, 0.9, *advice.Confidence)
}

func TestClient_AdviseMalformedAnswer(t *testing.T) {
	srv := geminiServer(t, "sorry, no idea")
	defer srv.Close()

	cfg := config.Default()
	cfg.AdvisoryAPIKey = "test-key"

	client, err := New(context.Background(), cfg, WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Advise(context.Background(), testBuffer(), enhance.Auto, enhance.Hints{})
	assert.Error(t, err)
}

func TestClient_AdviseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 400, "message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.AdvisoryAPIKey = "test-key"

	client, err := New(context.Background(), cfg, WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Advise(context.Background(), testBuffer(), enhance.Auto, enhance.Hints{})
	assert.Error(t, err)
}

func TestClient_IsAnAdvisor(t *testing.T) {
	var _ enhance.Advisor = (*Client)(nil)
}

func TestPrompt(t *testing.T) {
	plain := Prompt(enhance.Food, enhance.Hints{})
	assert.Contains(t, plain, "The requested enhancement type is: food")
	assert.NotContains(t, plain, "Context from the caller")

	score := 0.7
	hinted := Prompt(enhance.Food, enhance.Hints{
		QualityScore: &score,
		Issues:       []enhance.Issue{enhance.IssueBlur, enhance.IssueNoise},
	})
	assert.True(t, strings.HasPrefix(hinted, plain))
	assert.Contains(t, hinted, "prior quality estimate for this image is 0.70")
	assert.Contains(t, hinted, "above 0.30")
	assert.Contains(t, hinted, "Known quality issues: blur, noise.")
}
