package geometry

import "math"

const (
	MinZoom   = 0.5
	MaxZoom   = 4.0
	zoomStep  = 0.25
	wheelStep = 0.1
)

// Viewport tracks the zoom and pan applied to a preview image.
// The zero value is not ready for use; call NewViewport.
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64

	dragging   bool
	dragStartX float64
	dragStartY float64
}

// NewViewport returns a viewport at zoom 1 with no pan
func NewViewport() *Viewport {
	return &Viewport{Zoom: 1}
}

func (v *Viewport) ZoomIn() {
	v.Zoom = math.Min(v.Zoom+zoomStep, MaxZoom)
}

func (v *Viewport) ZoomOut() {
	v.Zoom = math.Max(v.Zoom-zoomStep, MinZoom)
}

// SetZoom sets an absolute zoom level, clamped to MinZoom..MaxZoom
func (v *Viewport) SetZoom(z float64) {
	v.Zoom = clamp(z, MinZoom, MaxZoom)
}

// Wheel applies a scroll-wheel delta. Scrolling down zooms out.
func (v *Viewport) Wheel(deltaY float64) {
	step := wheelStep
	if deltaY > 0 {
		step = -wheelStep
	}
	v.Zoom = clamp(v.Zoom+step, MinZoom, MaxZoom)
}

// Reset restores zoom 1 and clears the pan offset
func (v *Viewport) Reset() {
	v.Zoom = 1
	v.PanX = 0
	v.PanY = 0
	v.dragging = false
}

// BeginPan starts a drag at the given client position
func (v *Viewport) BeginPan(clientX, clientY float64) {
	v.dragging = true
	v.dragStartX = clientX - v.PanX
	v.dragStartY = clientY - v.PanY
}

// MovePan updates the pan offset while a drag is active
func (v *Viewport) MovePan(clientX, clientY float64) {
	if !v.dragging {
		return
	}
	v.PanX = clientX - v.dragStartX
	v.PanY = clientY - v.dragStartY
}

func (v *Viewport) EndPan() {
	v.dragging = false
}

// ToImage converts a client-space pointer position into display space of the
// unzoomed image, given the client position of the image's top-left corner.
func (v *Viewport) ToImage(clientX, clientY, originX, originY float64) Point {
	return Point{
		X: (clientX - originX) / v.Zoom,
		Y: (clientY - originY) / v.Zoom,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
