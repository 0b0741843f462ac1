package preview

import (
	"bytes"
	"errors"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

func TestRenderPlacesDiscs(t *testing.T) {
	var f model.Frame
	f.Set(2, 3, model.RGB{R: 255})
	img, err := Render(&f, Options{Cell: 10})
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	r, g, b, _ := img.At(25, 35).RGBA()
	assert.Equal(t, []uint32{255, 0, 0}, []uint32{r >> 8, g >> 8, b >> 8})

	// cell corner is board, not LED
	r, g, b, _ = img.At(20, 30).RGBA()
	assert.Equal(t, []uint32{0x10, 0x10, 0x12}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestWritePNG(t *testing.T) {
	var f model.Frame
	f.Fill(model.RGB{G: 128})
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, &f, DefaultOptions))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, model.Width*DFLT_CELL, img.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "f.png")
	require.NoError(t, SavePNG(path, &f, DefaultOptions))
}

func TestBadCell(t *testing.T) {
	_, err := Render(&model.Frame{}, Options{Cell: MAX_CELL + 1})
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
	err = SavePNG(filepath.Join(t.TempDir(), "missing", "f.png"), &model.Frame{}, DefaultOptions)
	assert.True(t, errors.Is(err, errs.ErrIOFailure))
}
