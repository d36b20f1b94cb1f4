package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	boxThickness = 2
	labelOffsetY = 10
)

var annotationColor = color.RGBA{G: 255, A: 255}

// Annotation is one box and its caption drawn on a streamed frame.
type Annotation struct {
	Box  Box
	Text string
}

// Annotate copies img and draws every annotation's rectangle and caption on it.
func Annotate(img image.Image, annotations []Annotation) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	src := image.NewUniform(annotationColor)
	face := basicfont.Face7x13
	for _, a := range annotations {
		drawRect(dst, a.Box.Rect(), src)
		if a.Text == "" {
			continue
		}
		y := max(a.Box.Y1-labelOffsetY, face.Ascent)
		d := &font.Drawer{
			Dst:  dst,
			Src:  src,
			Face: face,
			Dot:  fixed.P(a.Box.X1, y),
		}
		d.DrawString(a.Text)
	}
	return dst
}

// drawRect strokes the outline of r, clipped to dst.
func drawRect(dst *image.RGBA, r image.Rectangle, src image.Image) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}
