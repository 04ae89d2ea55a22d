package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	imageOpacity     = 0.25
	imageRotationDeg = -30
	minFontSize      = 8
)

var (
	fontOnce   sync.Once
	parsedFont *opentype.Font
	fontErr    error
)

func regularFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
	})
	return parsedFont, fontErr
}

// Image 在图片中心叠加旋转的半透明文字, 输出无损 PNG, 尺寸与原图一致
func Image(src []byte, stamp Stamp) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	fontSize := math.Max(float64(min(w, h))/25, minFontSize)
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	layer := image.NewRGBA(dst.Bounds())
	ink := image.NewUniform(color.NRGBA{R: 255, A: uint8(math.Round(imageOpacity * 255))})
	d := &font.Drawer{Dst: layer, Src: ink, Face: face}

	cx, cy := float64(w)/2, float64(h)/2
	first, second := stamp.Lines()
	drawCentered(d, first, cx, cy-fontSize*0.3)
	drawCentered(d, second, cx, cy+fontSize*1.1)

	// 绕图片中心旋转文字层后叠加到原图
	rad := imageRotationDeg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	s2d := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, s2d, layer, layer.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// drawCentered 以 (cx, baseline) 为基线中心绘制一行文字
func drawCentered(d *font.Drawer, text string, cx, baseline float64) {
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.Int26_6(cx*64) - width/2,
		Y: fixed.Int26_6(baseline * 64),
	}
	d.DrawString(text)
}
