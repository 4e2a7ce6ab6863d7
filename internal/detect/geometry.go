// File: internal/detect/geometry.go
package detect

import (
	"math"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
)

// Geometry holds per-call measurements of an element against the viewport.
type Geometry struct {
	Rect dom.Rect `json:"rect"`
	Area float64  `json:"area"`
	// CenterDistance is the distance between the element and viewport centers.
	CenterDistance float64 `json:"center_distance"`
	// VerticalPosition is the element center's height in the viewport, 0 at
	// the top edge and 1 at the bottom edge. It may fall outside [0, 1].
	VerticalPosition float64 `json:"vertical_position"`
}

// IsVisible reports whether el is rendered and overlaps the viewport at all.
func IsVisible(el dom.Element, vp dom.Viewport) bool {
	st := el.ComputedStyle()
	if st.Display == "none" || st.Visibility == "hidden" || st.Visibility == "collapse" || st.Opacity <= 0 {
		return false
	}
	r := el.BoundingRect()
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return r.X < vp.Width && r.Right() > 0 && r.Y < vp.Height && r.Bottom() > 0
}

// IsFullyOnScreen reports whether el's box lies entirely within the viewport.
func IsFullyOnScreen(el dom.Element, vp dom.Viewport) bool {
	r := el.BoundingRect()
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 && r.Right() <= vp.Width && r.Bottom() <= vp.Height
}

// Measure takes fresh geometry of el.
func Measure(el dom.Element, vp dom.Viewport) Geometry {
	r := el.BoundingRect()
	cx, cy := r.Center()
	g := Geometry{
		Rect:           r,
		Area:           r.Area(),
		CenterDistance: math.Hypot(cx-vp.Width/2, cy-vp.Height/2),
	}
	if vp.Height > 0 {
		g.VerticalPosition = cy / vp.Height
	}
	return g
}
