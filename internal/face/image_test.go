package face

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int, at func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, at(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePhotoPNG(t *testing.T) {
	raw := pngBytes(t, 4, 4, func(x, y int) color.Color { return color.Gray{Y: 128} })
	got, err := DecodePhoto(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodePhotoDataURL(t *testing.T) {
	raw := pngBytes(t, 4, 4, func(x, y int) color.Color { return color.Gray{Y: 10} })
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	got, err := DecodePhoto(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodePhotoEmpty(t *testing.T) {
	got, err := DecodePhoto("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodePhotoBadBase64(t *testing.T) {
	_, err := DecodePhoto("!!! not base64 !!!")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodePhotoNotAnImage(t *testing.T) {
	_, err := DecodePhoto(base64.StdEncoding.EncodeToString([]byte("plain text payload")))
	assert.ErrorIs(t, err, ErrInvalidImage)
}
