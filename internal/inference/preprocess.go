package inference

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalization describes the classifier's expected input tensor.
type Normalization struct {
	Size int
	Mean [3]float64
	Std  [3]float64
}

// Preprocess resizes img to Size x Size and returns a channel-normalized CHW
// tensor of length 3*Size*Size. Each crop is processed independently, so a
// batch gives the same tensors as classifying crops one at a time.
func Preprocess(img image.Image, n Normalization) []float32 {
	s := n.Size
	resized := imaging.Resize(img, s, s, imaging.Linear)

	plane := s * s
	out := make([]float32, 3*plane)
	for y := range s {
		row := resized.Pix[y*resized.Stride:]
		for x := range s {
			px := row[x*4 : x*4+3]
			for c := range 3 {
				v := float64(px[c]) / 255
				out[c*plane+y*s+x] = float32((v - n.Mean[c]) / n.Std[c])
			}
		}
	}
	return out
}
