package frame

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Box is a pixel-space rectangle [X1,X2)x[Y1,Y2) relative to the frame origin.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle { return image.Rect(b.X1, b.Y1, b.X2, b.Y2) }

// Slice returns the box as [x1, y1, x2, y2].
func (b Box) Slice() []int { return []int{b.X1, b.Y1, b.X2, b.Y2} }

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// Crop is a padded, clamped face region cut out of a frame.
type Crop struct {
	Box   Box
	Image *image.NRGBA
}

// PadAndClamp grows box by padding pixels on every side and clamps it to a
// width x height frame. The result satisfies 0 <= X1 < X2 <= width and
// 0 <= Y1 < Y2 <= height, or ok is false.
func PadAndClamp(box Box, padding, width, height int) (Box, bool) {
	padding = max(padding, 0)
	out := Box{
		X1: clamp(box.X1-padding, 0, width),
		Y1: clamp(box.Y1-padding, 0, height),
		X2: clamp(box.X2+padding, 0, width),
		Y2: clamp(box.Y2+padding, 0, height),
	}
	if out.Empty() {
		return Box{}, false
	}
	return out, true
}

// CropFace extracts the padded region around box. It returns false when the
// clamped region has zero area; such crops must never reach the classifier.
func CropFace(img image.Image, box Box, padding int) (*Crop, bool) {
	bounds := img.Bounds()
	padded, ok := PadAndClamp(box, padding, bounds.Dx(), bounds.Dy())
	if !ok {
		return nil, false
	}
	sub := imaging.Crop(img, padded.Rect().Add(bounds.Min))
	if sub.Bounds().Empty() {
		return nil, false
	}
	return &Crop{Box: padded, Image: sub}, true
}

// ClampBox clamps box to the frame without padding.
func ClampBox(box Box, width, height int) Box {
	return Box{
		X1: clamp(box.X1, 0, width),
		Y1: clamp(box.Y1, 0, height),
		X2: clamp(box.X2, 0, width),
		Y2: clamp(box.Y2, 0, height),
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
