// Package enhance decides which corrective filters an image needs and
// applies them.
//
// The Decision Engine maps a metrics report and a requested category to an
// ordered Plan; it always produces a plan and never fails. The Executor
// applies a plan to a PixelBuffer, producing a new buffer and skipping any
// individual operation that fails.
package enhance

import (
	"sort"
	"strings"

	"github.com/ironsheep/pixelfly/internal/apperr"
)

// OpKind identifies an enhancement operation.
type OpKind string

const (
	NoiseReduce      OpKind = "noise_reduce"
	Sharpen          OpKind = "sharpen"
	ContrastAdjust   OpKind = "contrast_adjust"
	BrightnessAdjust OpKind = "brightness_adjust"
	SaturationAdjust OpKind = "saturation_adjust"
	ColorBalance     OpKind = "color_balance"
	DetailBoost      OpKind = "detail_boost"
)

// OpOrder is the fixed application order. Denoising runs before sharpening,
// which runs before tone, color and detail adjustments.
var OpOrder = []OpKind{
	NoiseReduce,
	Sharpen,
	ContrastAdjust,
	BrightnessAdjust,
	SaturationAdjust,
	ColorBalance,
	DetailBoost,
}

func rank(k OpKind) int {
	for i, o := range OpOrder {
		if o == k {
			return i
		}
	}
	return len(OpOrder)
}

// Operation is one step of a plan.
type Operation struct {
	Kind  OpKind  `json:"operation"`
	Param float64 `json:"parameter"`
}

// Plan is an ordered list of operations in which every kind appears at
// most once. The zero value is the empty (no-op) plan.
type Plan []Operation

// NewPlan builds a plan from ops. When a kind is given more than once the
// last parameter wins. The result is sorted into OpOrder.
func NewPlan(ops ...Operation) Plan {
	params := make(map[OpKind]float64, len(ops))
	for _, op := range ops {
		params[op.Kind] = op.Param
	}

	plan := make(Plan, 0, len(params))
	for kind, param := range params {
		plan = append(plan, Operation{Kind: kind, Param: param})
	}
	sort.Slice(plan, func(i, j int) bool {
		ri, rj := rank(plan[i].Kind), rank(plan[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return plan[i].Kind < plan[j].Kind
	})
	return plan
}

// Kinds returns the operation kinds in plan order.
func (p Plan) Kinds() []OpKind {
	kinds := make([]OpKind, len(p))
	for i, op := range p {
		kinds[i] = op.Kind
	}
	return kinds
}

// Has reports whether the plan contains kind.
func (p Plan) Has(kind OpKind) bool {
	_, ok := p.Param(kind)
	return ok
}

// Param returns the parameter of kind, if present.
func (p Plan) Param(kind OpKind) (float64, bool) {
	for _, op := range p {
		if op.Kind == kind {
			return op.Param, true
		}
	}
	return 0, false
}

// Category is the requested enhancement profile.
type Category string

const (
	Auto      Category = "auto"
	Portrait  Category = "portrait"
	Landscape Category = "landscape"
	Food      Category = "food"
	Product   Category = "product"
	LowLight  Category = "low_light"
	Vintage   Category = "vintage"
)

// Categories lists every supported category.
var Categories = []Category{Auto, Portrait, Landscape, Food, Product, LowLight, Vintage}

// ParseCategory maps a name to a Category. An empty name selects Auto.
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Auto, nil
	}
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", apperr.New(apperr.ValidationError, "unknown enhancement category %q", name)
}
