package photos

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{10, 120, 200, 255}), imaging.PNG))
	return buf.Bytes()
}

func TestPutPhotoNormalizes(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "http://shop.local:8080/", 100)
	require.NoError(t, err)

	ref, err := fs.PutPhoto(context.Background(), 42, pngBytes(t, 400, 200))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "42-") && strings.HasSuffix(ref, ".jpg"), ref)
	assert.Equal(t, "http://shop.local:8080/photos/"+ref, fs.PhotoURL(ref))

	p, err := fs.Path(ref)
	require.NoError(t, err)
	img, err := imaging.Open(p)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestPutPhotoKeepsEveryUpload(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "", 0)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := fs.PutPhoto(ctx, 1, []byte("first"))
	require.NoError(t, err)
	second, err := fs.PutPhoto(ctx, 1, []byte("second"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	for ref, want := range map[string]string{first: "first", second: "second"} {
		p, err := fs.Path(ref)
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, want, string(data), "non-images are stored verbatim")
	}

	n, err := fs.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, fs.Remove(ctx, second))
	require.NoError(t, fs.Remove(ctx, second), "removing twice is fine")
	_, err = fs.Path(second)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.Path(first)
	assert.NoError(t, err)
	assert.NoError(t, fs.Remove(ctx, "../outside.jpg"))
}

type staticSettings map[string]int

func (s staticSettings) GetIntSetting(_ context.Context, key string, fallback int) int {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

func TestPutPhotoReadsMaxEdgePerPut(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "", 100)
	require.NoError(t, err)
	ctx := context.Background()
	settings := staticSettings{}
	fs.UseSettings(settings)

	width := func(ref string) int {
		t.Helper()
		p, err := fs.Path(ref)
		require.NoError(t, err)
		img, err := imaging.Open(p)
		require.NoError(t, err)
		return img.Bounds().Dx()
	}

	ref, err := fs.PutPhoto(ctx, 1, pngBytes(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, 100, width(ref), "fallback to the constructor size")

	settings[MaxEdgeSetting] = 200
	ref, err = fs.PutPhoto(ctx, 1, pngBytes(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, 200, width(ref))

	settings[MaxEdgeSetting] = 0
	ref, err = fs.PutPhoto(ctx, 1, pngBytes(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, 400, width(ref), "zero keeps the original size")
}

func TestPathRejectsTraversal(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "", 0)
	require.NoError(t, err)

	for _, ref := range []string{"", "../etc/passwd", "a/b.jpg", ".hidden", "missing.jpg"} {
		_, err := fs.Path(ref)
		assert.ErrorIs(t, err, ErrNotFound, ref)
	}
	assert.Equal(t, "", fs.PhotoURL(""))
}
