// Package placement resolves where a watermark goes.
//
// A Position is one of four closed variants: a FixedZone, SmartAdaptive
// (least busy candidate zone), ContentAware and EdgeBased. Place never
// fails; if the zone computation breaks it falls back to the fixed
// bottom-right zone.
package placement

import (
	"image"
	"strings"

	"github.com/ironsheep/pixelfly/internal/analysis"
)

// Position is a requested watermark position. The set of implementations
// is closed.
type Position interface {
	// Name is the wire name of the position.
	Name() string
	isPosition()
}

// FixedZone places the watermark in a named zone.
type FixedZone struct {
	ID string
}

// SmartAdaptive picks the candidate zone with the lowest intensity variance.
type SmartAdaptive struct{}

// ContentAware places the watermark away from the main content.
type ContentAware struct{}

// EdgeBased places the watermark in the top-left edge band.
type EdgeBased struct{}

func (p FixedZone) Name() string  { return p.ID }
func (SmartAdaptive) Name() string { return "smart_adaptive" }
func (ContentAware) Name() string  { return "content_aware" }
func (EdgeBased) Name() string     { return "edge_detection" }

func (FixedZone) isPosition()     {}
func (SmartAdaptive) isPosition() {}
func (ContentAware) isPosition()  {}
func (EdgeBased) isPosition()     {}

// Fixed zone ids.
const (
	TopLeft      = "top_left"
	TopRight     = "top_right"
	BottomLeft   = "bottom_left"
	BottomRight  = "bottom_right"
	Center       = "center"
	TopCenter    = "top_center"
	BottomCenter = "bottom_center"
)

// FixedZones lists the accepted fixed zone ids.
var FixedZones = []string{TopLeft, TopRight, BottomLeft, BottomRight, Center, TopCenter, BottomCenter}

// Names lists every accepted position name.
func Names() []string {
	return append([]string{"smart_adaptive", "content_aware", "edge_detection"}, FixedZones...)
}

// ParsePosition maps a wire name to a Position. An empty name selects
// SmartAdaptive. Any other name is taken as a fixed zone id; ids that are
// not recognised resolve to bottom_right at placement time.
func ParsePosition(name string) Position {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "smart_adaptive":
		return SmartAdaptive{}
	case "content_aware":
		return ContentAware{}
	case "edge_detection", "edge_based":
		return EdgeBased{}
	default:
		return FixedZone{ID: strings.ToLower(strings.TrimSpace(name))}
	}
}

// fixedRect returns the rectangle of a fixed zone, clamped to the image.
// Unknown ids fall back to bottom_right.
func fixedRect(id string, w, h int) (image.Rectangle, string) {
	var r image.Rectangle
	switch id {
	case TopLeft:
		r = image.Rect(20, 20, 200, 80)
	case TopRight:
		r = image.Rect(w-180, 20, w-20, 80)
	case BottomLeft:
		r = image.Rect(20, h-80, 200, h-20)
	case Center:
		r = image.Rect(w/2-90, h/2-40, w/2+90, h/2+40)
	case TopCenter:
		r = image.Rect(w/2-90, 20, w/2+90, 80)
	case BottomCenter:
		r = image.Rect(w/2-90, h-80, w/2+90, h-20)
	default:
		id = BottomRight
		r = image.Rect(w-180, h-80, w-20, h-20)
	}
	return analysis.ClampRect(r, w, h), id
}
