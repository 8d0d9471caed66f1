package photo

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestProcessor_Process_JPEG(t *testing.T) {
	p := NewProcessor(t.TempDir())

	data, mime, err := p.Process(encodeJPEG(t, newTestImage(800, 600)))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", mime)
	}

	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	if out.Bounds().Dx() != 512 || out.Bounds().Dy() != 512 {
		t.Errorf("Expected 512x512, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestProcessor_Process_PNGUpscaled(t *testing.T) {
	p := NewProcessor(t.TempDir())

	// 小图放大到统一尺寸，重编码为 jpeg
	data, mime, err := p.Process(encodePNG(t, newTestImage(300, 300)))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", mime)
	}

	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	if out.Bounds().Dx() != 512 {
		t.Errorf("Expected width 512, got %d", out.Bounds().Dx())
	}
}

func TestProcessor_Process_CenterCrop(t *testing.T) {
	p := NewProcessor(t.TempDir())

	// 左右蓝边、中间红色的宽图，居中裁方后应只剩红色
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	for x := 0; x < 100; x++ {
		c := red
		if x < 25 || x >= 75 {
			c = blue
		}
		for y := 0; y < 50; y++ {
			img.Set(x, y, c)
		}
	}

	data, _, err := p.Process(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	r, _, b, _ := out.At(256, 256).RGBA()
	if r>>8 < 200 || b>>8 > 80 {
		t.Errorf("Expected red center after crop, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestProcessor_Process_Rejected(t *testing.T) {
	p := NewProcessor(t.TempDir())

	tests := []struct {
		name string
		raw  []byte
	}{
		{"空内容", nil},
		{"文本", []byte("这不是一张照片")},
		{"GIF不支持", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := p.Process(tt.raw); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestProcessor_Save(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(filepath.Join(dir, "photos"))
	visitID := uuid.New()

	name, err := p.Save(encodeJPEG(t, newTestImage(640, 480)), visitID)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !strings.HasPrefix(name, visitID.String()+"-") {
		t.Errorf("Expected visit id prefix, got %s", name)
	}
	if !strings.HasSuffix(name, ".jpg") {
		t.Errorf("Expected .jpg suffix, got %s", name)
	}

	saved, err := os.ReadFile(filepath.Join(p.Dir(), name))
	if err != nil {
		t.Fatalf("Read saved photo failed: %v", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(saved)); err != nil {
		t.Errorf("Saved photo not decodable: %v", err)
	}
}

func TestProcessor_Save_InvalidPhoto(t *testing.T) {
	p := NewProcessor(t.TempDir())

	if _, err := p.Save([]byte("bad"), uuid.New()); err == nil {
		t.Error("Expected error for invalid photo")
	}
}

func newTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
