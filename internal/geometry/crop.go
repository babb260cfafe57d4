package geometry

import (
	"image"
	"math"
)

// MinSelectionSpan is the smallest span, in display pixels, a drawn
// selection needs on both axes to count as a crop.
const MinSelectionSpan = 10.0

// Point is a position in display (CSS pixel) space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Selection is a rectangle drawn by the user, given by the point where the
// drag started and the point where it ended. The corners may be in any order.
type Selection struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Size is a width/height pair in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale holds the native-to-display ratio for each axis
type Scale struct {
	X float64
	Y float64
}

// ScaleFor returns the ratio between the natural image size and the size the
// image is displayed at. A zero display dimension yields a zero scale.
func ScaleFor(natural, display Size) Scale {
	var s Scale
	if display.Width > 0 {
		s.X = natural.Width / display.Width
	}
	if display.Height > 0 {
		s.Y = natural.Height / display.Height
	}
	return s
}

// UniformScale is the scale for an image displayed with its aspect ratio
// preserved, where one factor applies to both axes.
func UniformScale(natural, display Size) Scale {
	s := ScaleFor(natural, display)
	return Scale{X: s.X, Y: s.X}
}

// Empty reports whether the selection is too small to be a crop
func (s Selection) Empty() bool {
	return math.Abs(s.End.X-s.Start.X) < MinSelectionSpan ||
		math.Abs(s.End.Y-s.Start.Y) < MinSelectionSpan
}

// MapToNative converts a display-space selection into a rectangle in the
// image's native pixel space. The returned rectangle has Min at the top-left
// and Max at the bottom-right. ok is false when the selection is below the
// minimum span, in which case the whole image should be used.
func MapToNative(sel Selection, scale Scale) (rect image.Rectangle, ok bool) {
	if sel.Empty() {
		return image.Rectangle{}, false
	}

	x1 := math.Min(sel.Start.X, sel.End.X)
	x2 := math.Max(sel.Start.X, sel.End.X)
	y1 := math.Min(sel.Start.Y, sel.End.Y)
	y2 := math.Max(sel.Start.Y, sel.End.Y)

	rect = image.Rectangle{
		Min: image.Pt(round(x1*scale.X), round(y1*scale.Y)),
		Max: image.Pt(round(x2*scale.X), round(y2*scale.Y)),
	}
	return rect, true
}

// ClampTo limits rect to bounds. Selections dragged past the edge of the
// canvas produce coordinates outside the image.
func ClampTo(rect, bounds image.Rectangle) image.Rectangle {
	return rect.Intersect(bounds)
}

func round(v float64) int {
	return int(math.Round(v))
}
