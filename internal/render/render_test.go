package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{name: "wide_landscape", w: 3000, h: 1500, maxDim: 1500, wantW: 1500, wantH: 750},
		{name: "tall_portrait", w: 1000, h: 4000, maxDim: 1000, wantW: 250, wantH: 1000},
		{name: "square", w: 2000, h: 2000, maxDim: 500, wantW: 500, wantH: 500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := downscale(encodeJPEG(t, tc.w, tc.h), tc.maxDim, 75)
			if err != nil {
				t.Fatalf("downscale: %v", err)
			}
			w, h := decodeDims(t, out)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("dimensions = %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestDownscale_WithinBoundsUntouched(t *testing.T) {
	in := encodeJPEG(t, 800, 600)
	out, err := downscale(in, 1568, 75)
	if err != nil {
		t.Fatalf("downscale: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("image within bounds was re-encoded")
	}
}

func TestDownscale_RejectsGarbage(t *testing.T) {
	if _, err := downscale([]byte("not a jpeg"), 100, 75); err == nil {
		t.Error("expected error for undecodable input")
	}
}

func TestPopplerSource_PageCountMissingFile(t *testing.T) {
	s := NewPopplerSource(nil)
	if _, err := s.PageCount("/does/not/exist.pdf"); err == nil {
		t.Error("expected error for missing file")
	}
}
