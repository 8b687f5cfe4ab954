package analysis

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/pixelfly/internal/imaging"
)

// TextRegion is an area whose edge structure looks like printed text, such
// as an existing caption, signature or logo.
type TextRegion struct {
	Rect       image.Rectangle `json:"-"`
	X          int             `json:"x"`
	Y          int             `json:"y"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Confidence float64         `json:"confidence"`
}

// edgeThreshold is the luma step between neighbours that counts as an edge.
const edgeThreshold = 30

// Sliding windows sized for small to large text lines.
var textWindows = []image.Point{
	{80, 25},
	{100, 30},
	{150, 40},
	{200, 50},
}

// TextRegions scans buf with a set of sliding windows and returns the merged
// areas that look like text, most confident first. Windows qualify when their
// edge density is moderate and their edges run mostly horizontally.
func TextRegions(buf imaging.PixelBuffer, minConfidence float64) []TextRegion {
	if buf.Empty() {
		return nil
	}
	edges := edgeMap(buf.Luma())
	w, h := edges.w, edges.h

	var candidates []TextRegion
	for _, win := range textWindows {
		stepX, stepY := win.X/2, win.Y/2
		for y := 0; y+win.Y <= h; y += stepY {
			for x := 0; x+win.X <= w; x += stepX {
				r := image.Rect(x, y, x+win.X, y+win.Y)
				density := float64(edges.count(r)) / float64(win.X*win.Y)
				if density < 0.05 || density > 0.4 {
					continue
				}
				conf := edges.horizontality(r) * (1 - math.Abs(density-0.2)/0.2)
				if conf < minConfidence {
					continue
				}
				candidates = append(candidates, newTextRegion(r, math.Round(conf*1000)/1000))
			}
		}
	}

	merged := mergeRegions(candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}

// OccupiedZones returns the candidate zones of a w x h image that overlap
// any of regions, in candidate order.
func OccupiedZones(regions []TextRegion, w, h int) []ZoneID {
	var out []ZoneID
	for _, id := range CandidateOrder {
		zone := CandidateRect(id, w, h)
		for _, r := range regions {
			if r.Rect.Overlaps(zone) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

func newTextRegion(r image.Rectangle, conf float64) TextRegion {
	return TextRegion{
		Rect:       r,
		X:          r.Min.X,
		Y:          r.Min.Y,
		Width:      r.Dx(),
		Height:     r.Dy(),
		Confidence: conf,
	}
}

// mergeRegions folds every region into the first already-kept region it
// overlaps, keeping the higher confidence.
func mergeRegions(regions []TextRegion) []TextRegion {
	var merged []TextRegion
	for _, r := range regions {
		found := false
		for i := range merged {
			if r.Rect.Overlaps(merged[i].Rect) {
				merged[i] = newTextRegion(r.Rect.Union(merged[i].Rect), math.Max(r.Confidence, merged[i].Confidence))
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}
	return merged
}

type edgeGrid struct {
	w, h int
	set  []bool

	// sum is the summed-area table of set, (w+1) x (h+1).
	sum []int
}

// edgeMap marks pixels whose forward difference to the right or lower
// neighbour exceeds edgeThreshold. The outer border is never marked.
func edgeMap(p imaging.Plane) edgeGrid {
	g := edgeGrid{w: p.Width, h: p.Height, set: make([]bool, len(p.Pix))}
	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < p.Width-1; x++ {
			c := p.At(x, y)
			if math.Abs(c-p.At(x+1, y)) > edgeThreshold || math.Abs(c-p.At(x, y+1)) > edgeThreshold {
				g.set[y*g.w+x] = true
			}
		}
	}

	stride := g.w + 1
	g.sum = make([]int, stride*(g.h+1))
	for y := 0; y < g.h; y++ {
		row := 0
		for x := 0; x < g.w; x++ {
			if g.set[y*g.w+x] {
				row++
			}
			g.sum[(y+1)*stride+x+1] = g.sum[y*stride+x+1] + row
		}
	}
	return g
}

func (g edgeGrid) at(x, y int) bool {
	return g.set[y*g.w+x]
}

func (g edgeGrid) count(r image.Rectangle) int {
	stride := g.w + 1
	return g.sum[r.Max.Y*stride+r.Max.X] - g.sum[r.Min.Y*stride+r.Max.X] -
		g.sum[r.Max.Y*stride+r.Min.X] + g.sum[r.Min.Y*stride+r.Min.X]
}

// horizontality is the share of edge runs in r that are horizontal.
func (g edgeGrid) horizontality(r image.Rectangle) float64 {
	var horiz, vert int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		in := false
		for x := r.Min.X; x < r.Max.X; x++ {
			if g.at(x, y) {
				if !in {
					horiz++
				}
				in = true
			} else {
				in = false
			}
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		in := false
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if g.at(x, y) {
				if !in {
					vert++
				}
				in = true
			} else {
				in = false
			}
		}
	}
	if horiz+vert == 0 {
		return 0
	}
	return float64(horiz) / float64(horiz+vert)
}
