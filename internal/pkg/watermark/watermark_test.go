package watermark

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStamp = Stamp{
	Email: "alice@example.com",
	At:    time.Date(2025, time.March, 5, 14, 7, 31, 0, time.UTC),
}

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStampLines(t *testing.T) {
	first, second := testStamp.Lines()
	assert.Equal(t, "Shared with: alice@example.com", first)
	assert.Equal(t, "Downloaded at: 05 Mar 2025, 14:07:31", second)
}

func TestImage_KeepsDimensionsAndDrawsText(t *testing.T) {
	src := whitePNG(t, 400, 300)

	out, err := Image(src, testStamp)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	changed := false
	for y := 0; y < 300 && !changed; y++ {
		for x := 0; x < 400; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || b != 0xffff {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "watermark text should alter some pixels")
}

func TestImage_Deterministic(t *testing.T) {
	src := whitePNG(t, 120, 80)

	a, err := Image(src, testStamp)
	require.NoError(t, err)
	b, err := Image(src, testStamp)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestApply_DispatchesByContent(t *testing.T) {
	res, err := Apply(whitePNG(t, 50, 50), testStamp)
	require.NoError(t, err)
	assert.True(t, res.IsImage)
	assert.Equal(t, "image/png", res.MimeType)

	_, err = Apply([]byte("just some plain text"), testStamp)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPDF_StampsEveryPage(t *testing.T) {
	// 用两张图片生成一个两页的 PDF
	var src bytes.Buffer
	imgs := []io.Reader{bytes.NewReader(whitePNG(t, 60, 60)), bytes.NewReader(whitePNG(t, 60, 60))}
	require.NoError(t, api.ImportImages(nil, &src, imgs, nil, newPDFConfig()))

	before, err := PageCount(src.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, before)
	stamped, err := HasStamp(src.Bytes())
	require.NoError(t, err)
	require.False(t, stamped)

	res, err := Apply(src.Bytes(), testStamp)
	require.NoError(t, err)
	assert.False(t, res.IsImage)
	assert.Equal(t, "application/pdf", res.MimeType)

	after, err := PageCount(res.Data)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	stamped, err = HasStamp(res.Data)
	require.NoError(t, err)
	assert.True(t, stamped)

	again, err := PDF(src.Bytes(), testStamp)
	require.NoError(t, err)
	againPages, err := PageCount(again)
	require.NoError(t, err)
	assert.Equal(t, after, againPages)
}
