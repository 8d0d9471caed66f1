// Package photo 提供外访照片的规范化处理与存储
// 上传的照片统一居中裁方并缩放到固定尺寸，避免原图大小不可控
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Processor 照片处理器
type Processor struct {
	dir  string
	size int
}

// NewProcessor 创建照片处理器，输出统一为 512 见方
func NewProcessor(dir string) *Processor {
	return &Processor{
		dir:  dir,
		size: 512,
	}
}

// Dir 返回存储目录
func (p *Processor) Dir() string {
	return p.dir
}

// Process 校验并规范化照片：居中裁方、缩放、重编码为 jpeg
// 返回处理后的内容与 MIME 类型
func (p *Processor) Process(raw []byte) ([]byte, string, error) {
	if len(raw) == 0 {
		return nil, "", errors.New("照片内容为空")
	}

	mime := http.DetectContentType(raw)
	switch mime {
	case "image/png", "image/jpeg", "image/webp":
	default:
		return nil, "", errors.New("照片仅支持png、jpeg或webp格式")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// webp 不在标准解码注册表中，单独尝试
		decoded, decodeErr := webp.Decode(bytes.NewReader(raw))
		if decodeErr != nil {
			return nil, "", errors.New("照片解码失败")
		}
		img = decoded
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, "", errors.New("照片尺寸无效")
	}

	// 居中裁成正方形
	cropSize := width
	if height < cropSize {
		cropSize = height
	}
	cropX := (width - cropSize) / 2
	cropY := (height - cropSize) / 2

	cropRect := image.Rect(0, 0, cropSize, cropSize)
	cropped := image.NewRGBA(cropRect)
	srcPoint := image.Point{X: bounds.Min.X + cropX, Y: bounds.Min.Y + cropY}
	stddraw.Draw(cropped, cropRect, img, srcPoint, stddraw.Src)

	resized := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), cropped, cropped.Bounds(), xdraw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: 85}); err != nil {
		out.Reset()
		if pngErr := png.Encode(&out, resized); pngErr != nil {
			return nil, "", errors.New("照片编码失败")
		}
		return out.Bytes(), "image/png", nil
	}
	return out.Bytes(), "image/jpeg", nil
}

// Save 处理照片并写入存储目录，返回存储文件名
func (p *Processor) Save(raw []byte, visitID uuid.UUID) (string, error) {
	data, mime, err := p.Process(raw)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建照片目录失败: %w", err)
	}

	name := fmt.Sprintf("%s-%d%s", visitID, time.Now().UnixNano(), extFor(mime))
	if err := os.WriteFile(filepath.Join(p.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("保存照片失败: %w", err)
	}
	return name, nil
}

func extFor(mime string) string {
	if mime == "image/png" {
		return ".png"
	}
	return ".jpg"
}
