package frame

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

// createTestImage creates a solid color image of the given size.
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_ValidPayloads(t *testing.T) {
	jpg := encodeJPEG(t, createTestImage(64, 48, color.White))
	pngData := encodePNG(t, createTestImage(20, 10, color.Black))
	b64 := base64.StdEncoding.EncodeToString(jpg)

	tests := []struct {
		name    string
		payload []byte
		width   int
		height  int
	}{
		{"raw base64 jpeg", []byte(b64), 64, 48},
		{"data uri jpeg", []byte("data:image/jpeg;base64," + b64), 64, 48},
		{"data uri png", []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)), 20, 10},
		{"unpadded base64", []byte(base64.RawStdEncoding.EncodeToString(pngData)), 20, 10},
		{"surrounding whitespace", []byte("  " + b64 + "\n"), 64, 48},
		{"binary jpeg", jpg, 64, 48},
		{"binary png", pngData, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.payload, 0)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
		})
	}
}

func TestDecode_InvalidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"whitespace", []byte("   ")},
		{"not base64", []byte("this is not base64!!")},
		{"prefix only", []byte("data:image/jpeg;base64,")},
		{"valid base64, not an image", []byte(base64.StdEncoding.EncodeToString([]byte("hello world, not an image")))},
		{"truncated jpeg", []byte(base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}))},
		{"garbage binary", []byte{0x00, 0x01, 0x02, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.payload, 0)
			if err == nil {
				t.Fatalf("expected error, got image %v", img.Bounds())
			}
			if !IsDecodeError(err) {
				t.Errorf("expected DecodeError, got %T: %v", err, err)
			}
			if err.Error() == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

// pngHeaderOnly builds a PNG that declares width x height RGBA pixels but
// carries no pixel data at all.
func pngHeaderOnly(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := func(kind string, data []byte) {
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestDecode_OversizedHeader(t *testing.T) {
	bomb := pngHeaderOnly(60000, 60000)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"binary png", bomb},
		{"data uri png", []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(bomb))},
		{"wide only", pngHeaderOnly(100000, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.payload, 0)
			if err == nil {
				t.Fatalf("expected error, got image %v", img.Bounds())
			}
			if !IsDecodeError(err) {
				t.Errorf("expected DecodeError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), "image too large") {
				t.Errorf("expected size rejection, got %v", err)
			}
		})
	}
}

func TestDecodeImage_MaxSide(t *testing.T) {
	data := encodePNG(t, createTestImage(64, 48, color.White))

	if _, err := DecodeImage(data, 64); err != nil {
		t.Errorf("image at the limit should decode, got %v", err)
	}
	_, err := DecodeImage(data, 63)
	if err == nil || !strings.Contains(err.Error(), "image too large") {
		t.Errorf("expected size rejection for a 63px limit, got %v", err)
	}
}

func TestPadAndClamp(t *testing.T) {
	tests := []struct {
		name    string
		box     Box
		padding int
		width   int
		height  int
		want    Box
		wantOK  bool
	}{
		{"centered, fits", Box{40, 40, 60, 60}, 10, 100, 100, Box{30, 30, 70, 70}, true},
		{"clamped at origin", Box{5, 5, 20, 20}, 30, 100, 100, Box{0, 0, 50, 50}, true},
		{"clamped at far edge", Box{80, 80, 99, 99}, 50, 100, 100, Box{30, 30, 100, 100}, true},
		{"no padding", Box{1, 2, 3, 4}, 0, 10, 10, Box{1, 2, 3, 4}, true},
		{"negative padding treated as zero", Box{1, 2, 3, 4}, -5, 10, 10, Box{1, 2, 3, 4}, true},
		{"box outside frame", Box{200, 200, 300, 300}, 0, 100, 100, Box{}, false},
		{"inverted box", Box{50, 50, 10, 10}, 0, 100, 100, Box{}, false},
		{"zero width frame", Box{0, 0, 10, 10}, 5, 0, 100, Box{}, false},
		{"degenerate box with padding", Box{50, 50, 50, 50}, 1, 100, 100, Box{49, 49, 51, 51}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PadAndClamp(tt.box, tt.padding, tt.width, tt.height)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("PadAndClamp = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCropFace_BoundsInvariant sweeps boxes, paddings and frame sizes and checks
// every returned crop lies inside the frame with positive area.
func TestCropFace_BoundsInvariant(t *testing.T) {
	sizes := [][2]int{{1, 1}, {7, 3}, {32, 32}, {64, 20}}
	paddings := []int{0, 1, 30, 50}
	coords := []int{-60, -1, 0, 1, 5, 16, 31, 32, 63, 100}

	for _, size := range sizes {
		img := createTestImage(size[0], size[1], color.White)
		for _, pad := range paddings {
			for _, x1 := range coords {
				for _, x2 := range coords {
					box := Box{X1: x1, Y1: x1 / 2, X2: x2, Y2: x2 / 2}
					crop, ok := CropFace(img, box, pad)
					if !ok {
						if crop != nil {
							t.Fatalf("crop must be nil when not ok")
						}
						continue
					}
					b := crop.Box
					if b.X1 < 0 || b.X1 >= b.X2 || b.X2 > size[0] || b.Y1 < 0 || b.Y1 >= b.Y2 || b.Y2 > size[1] {
						t.Fatalf("box %v pad %d in %v produced out-of-bounds crop %v", box, pad, size, b)
					}
					ib := crop.Image.Bounds()
					if ib.Dx() != b.Width() || ib.Dy() != b.Height() {
						t.Fatalf("crop image %v does not match box %v", ib, b)
					}
				}
			}
		}
	}
}

func TestCropFace_NonZeroOrigin(t *testing.T) {
	base := createTestImage(100, 100, color.White)
	sub := base.SubImage(image.Rect(20, 20, 80, 80))

	crop, ok := CropFace(sub, Box{X1: 10, Y1: 10, X2: 20, Y2: 20}, 5)
	if !ok {
		t.Fatal("expected crop")
	}
	if crop.Box != (Box{5, 5, 25, 25}) {
		t.Errorf("unexpected box %v", crop.Box)
	}
	if crop.Image.Bounds().Dx() != 20 || crop.Image.Bounds().Dy() != 20 {
		t.Errorf("unexpected crop size %v", crop.Image.Bounds())
	}
}

func TestAnnotate(t *testing.T) {
	img := createTestImage(100, 80, color.Black)
	out := Annotate(img, []Annotation{
		{Box: Box{10, 30, 60, 70}, Text: "Happy (90.0%)"},
		{Box: Box{-10, -10, 500, 500}},
	})

	if out.Bounds() != image.Rect(0, 0, 100, 80) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if got := out.RGBAAt(10, 50); got != annotationColor {
		t.Errorf("expected box edge at (10,50), got %v", got)
	}
	if got := out.RGBAAt(30, 50); got == annotationColor {
		t.Error("box interior should be untouched")
	}
	// Source image must not be modified.
	if img.RGBAAt(10, 50) != (color.RGBA{A: 255}) {
		t.Error("Annotate mutated its input")
	}
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	data, err := EncodeJPEG(createTestImage(16, 8, color.White), 80)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	img, err := DecodeImage(data, 0)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}
