package render

import (
	"github.com/ironsheep/pixelfly/internal/placement"
)

// Options is the wire form of a watermark request. Absent fields take the
// defaults of DefaultSpec.
type Options struct {
	Text     *string  `json:"text,omitempty"`
	Position string   `json:"position,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Style    string   `json:"style,omitempty"`
	Size     string   `json:"size,omitempty"`
	Color    string   `json:"color,omitempty"`
}

// Spec resolves o into a validated Spec.
func (o Options) Spec() (Spec, error) {
	s := DefaultSpec()

	if o.Text != nil {
		s.Text = *o.Text
	}
	if o.Opacity != nil {
		s.Opacity = *o.Opacity
	}
	if o.Color != "" {
		s.Color = ParseColor(o.Color)
	}
	s.Position = placement.ParsePosition(o.Position)

	var err error
	if s.Style, err = ParseStyle(o.Style); err != nil {
		return Spec{}, err
	}
	if s.Size, err = ParseSize(o.Size); err != nil {
		return Spec{}, err
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}
