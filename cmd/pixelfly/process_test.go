package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

func TestDerivedPath(t *testing.T) {
	assert.Equal(t, "/tmp/photo_enhanced.jpg", derivedPath("/tmp/photo.jpg", "enhanced"))
	assert.Equal(t, "shot_watermarked", derivedPath("shot", "watermarked"))
}

func TestResolveOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		format   string
		in       string
		wantPath string
		want     imaging.Format
		wantErr  bool
	}{
		{"extension of -o", "out.png", "", "in.jpg", "out.png", imaging.FormatPNG, false},
		{"format matches -o", "out.jpg", "jpeg", "in.jpg", "out.jpg", imaging.FormatJPEG, false},
		{"format contradicts -o", "out.jpg", "png", "in.jpg", "", "", true},
		{"unknown -o extension", "out.webp", "", "in.jpg", "out.webp", imaging.FormatJPEG, false},
		{"bad format", "", "bmp", "in.jpg", "", "", true},
		{"derived keeps extension", "", "", "in.png", "in_enhanced.png", imaging.FormatPNG, false},
		{"derived follows format", "", "png", "in.jpg", "in_enhanced.png", imaging.FormatPNG, false},
		{"derived from webp input", "", "", "in.webp", "in_enhanced.jpeg", imaging.FormatJPEG, false},
	}

	t.Cleanup(func() { outputFlag, formatFlag = "", "" })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputFlag, formatFlag = tt.output, tt.format

			path, f, err := resolveOutput(tt.in, "enhanced")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestHintsFromFlags(t *testing.T) {
	t.Cleanup(func() { issuesFlag, qualityFlag = nil, 0 })

	require.NoError(t, enhanceCmd.Flags().Set("quality-score", "0.4"))
	issuesFlag = []string{"blur", " noise"}
	h, err := hintsFromFlags(enhanceCmd)
	require.NoError(t, err)
	require.NotNil(t, h.QualityScore)
	assert.Equal(t, 0.4, *h.QualityScore)
	assert.Equal(t, []enhance.Issue{enhance.IssueBlur, enhance.IssueNoise}, h.Issues)

	issuesFlag = []string{"scratches"}
	_, err = hintsFromFlags(enhanceCmd)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"mcp", "serve", "enhance", "watermark", "analyze", "version"} {
		assert.True(t, names[want], want)
	}
}
