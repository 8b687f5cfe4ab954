package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
	"github.com/ironsheep/pixelfly/internal/render"
)

var (
	outputFlag   string
	formatFlag   string
	categoryFlag string
	issuesFlag   []string
	qualityFlag  float64

	textFlag     string
	positionFlag string
	styleFlag    string
	sizeFlag     string
	colorFlag    string
	opacityFlag  float64
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <image> [-o out] [--category <name>] [--format jpeg|png]",
	Short: "Enhance one image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := enhance.ParseCategory(categoryFlag)
		if err != nil {
			return err
		}
		hints, err := hintsFromFlags(cmd)
		if err != nil {
			return err
		}
		out, format, err := resolveOutput(args[0], "enhanced")
		if err != nil {
			return err
		}

		orch, err := newOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		st, err := orch.Run(cmd.Context(), orchestrator.Job{
			Task:     orchestrator.TaskEnhance,
			Source:   imaging.Source{Path: args[0]},
			Format:   format,
			Category: category,
			Hints:    hints,
		})
		if err != nil {
			return err
		}
		return writeResult(st.Result(), out)
	},
}

var watermarkCmd = &cobra.Command{
	Use:   "watermark <image>... [-o dir] [--text --position --style --size --opacity --color]",
	Short: "Watermark one image, or a batch when several are given",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := render.Options{
			Position: positionFlag,
			Style:    styleFlag,
			Size:     sizeFlag,
			Color:    colorFlag,
		}
		if cmd.Flags().Changed("text") {
			opts.Text = &textFlag
		}
		if cmd.Flags().Changed("opacity") {
			opts.Opacity = &opacityFlag
		}
		spec, err := opts.Spec()
		if err != nil {
			return err
		}

		orch, err := newOrchestrator(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			out, format, err := resolveOutput(args[0], "watermarked")
			if err != nil {
				return err
			}
			st, err := orch.Run(cmd.Context(), orchestrator.Job{
				Task:      orchestrator.TaskWatermark,
				Source:    imaging.Source{Path: args[0]},
				Format:    format,
				Watermark: spec,
			})
			if err != nil {
				return err
			}
			return writeResult(st.Result(), out)
		}

		format, err := imaging.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		sources := make([]imaging.Source, len(args))
		for i, a := range args {
			sources[i] = imaging.Source{Path: a}
		}
		br, err := orch.RunBatch(cmd.Context(), sources, spec, format)
		if err != nil {
			return err
		}

		for _, it := range br.Items {
			if !it.Success {
				fmt.Fprintf(os.Stderr, "%s: %s\n", args[it.Index], it.Error)
				continue
			}
			out := derivedPath(args[it.Index], "watermarked")
			if outputFlag != "" {
				out = filepath.Join(outputFlag, filepath.Base(out))
			}
			out = strings.TrimSuffix(out, filepath.Ext(out)) + "." + string(format)
			if err := writeResult(it.Result, out); err != nil {
				return err
			}
		}
		fmt.Printf("processed %d of %d images in %.2fs\n", br.ProcessedCount, br.TotalRequested, br.Elapsed)
		if br.ProcessedCount == 0 {
			return fmt.Errorf("no images were processed")
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image> [--category <name>]",
	Short: "Print the metrics and zone report of an image as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := enhance.ParseCategory(categoryFlag)
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		res, err := orch.Analyze(cmd.Context(), imaging.Source{Path: args[0]}, category)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	enhanceCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default <name>_enhanced.<ext>)")
	enhanceCmd.Flags().StringVar(&formatFlag, "format", "", "Output format: jpeg or png (default from the output extension)")
	enhanceCmd.Flags().StringVar(&categoryFlag, "category", "auto", "Photo category: "+joinCategories())
	enhanceCmd.Flags().StringSliceVar(&issuesFlag, "issues", nil, "Known quality issues to correct (blur, low_contrast, noise, low_light, overexposed)")
	enhanceCmd.Flags().Float64Var(&qualityFlag, "quality-score", 0, "Prior quality estimate from 0 to 1")

	watermarkCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file, or directory when several images are given")
	watermarkCmd.Flags().StringVar(&formatFlag, "format", "", "Output format: jpeg or png")
	watermarkCmd.Flags().StringVar(&textFlag, "text", render.DefaultText, "Watermark text")
	watermarkCmd.Flags().StringVar(&positionFlag, "position", "smart_adaptive", "Zone or strategy")
	watermarkCmd.Flags().StringVar(&styleFlag, "style", string(render.Glass), "Watermark style")
	watermarkCmd.Flags().StringVar(&sizeFlag, "size", string(render.Medium), "small, medium, large or adaptive")
	watermarkCmd.Flags().StringVar(&colorFlag, "color", "white", "Color name or #rrggbb")
	watermarkCmd.Flags().Float64Var(&opacityFlag, "opacity", render.DefaultOpacity, "Opacity from 0 to 1")

	analyzeCmd.Flags().StringVar(&categoryFlag, "category", "auto", "Photo category used for the suggested plan")
}

func joinCategories() string {
	names := make([]string, len(enhance.Categories))
	for i, c := range enhance.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// derivedPath turns photo.jpg into photo_<suffix>.jpg next to the input.
func derivedPath(in, suffix string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_" + suffix + ext
}

// resolveOutput picks the output path and format for a single image. An
// explicit -o must agree with --format. A derived path keeps the input's
// extension only when it names the chosen format.
func resolveOutput(in, suffix string) (string, imaging.Format, error) {
	if outputFlag != "" {
		f, err := imaging.OutputFormat(formatFlag, outputFlag)
		return outputFlag, f, err
	}

	out := derivedPath(in, suffix)
	ext := filepath.Ext(out)
	if f, err := imaging.OutputFormat(formatFlag, out); err == nil && ext != "" {
		if _, extErr := imaging.ParseFormat(strings.TrimPrefix(ext, ".")); extErr == nil {
			return out, f, nil
		}
	}
	f, err := imaging.ParseFormat(formatFlag)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSuffix(out, ext) + "." + string(f), f, nil
}

func hintsFromFlags(cmd *cobra.Command) (enhance.Hints, error) {
	var h enhance.Hints
	if cmd.Flags().Changed("quality-score") {
		q := qualityFlag
		h.QualityScore = &q
	}
	for _, name := range issuesFlag {
		issue, err := enhance.ParseIssue(strings.TrimSpace(name))
		if err != nil {
			return enhance.Hints{}, err
		}
		h.Issues = append(h.Issues, issue)
	}
	return h, h.Validate()
}

func writeResult(res *orchestrator.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, res.Image, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("%s  %dx%d  [%s]\n", path, res.Width, res.Height, strings.Join(res.AppliedEffects, ", "))
	return nil
}
