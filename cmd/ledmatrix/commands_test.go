package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/config"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
)

func testConfig(t *testing.T) *config.Config {
	c := config.Default()
	c.StorePath = filepath.Join(t.TempDir(), "kv.yaml")
	c.FPS = 100
	return c
}

func status(t *testing.T, c *config.Config) matrix.Status {
	t.Helper()
	var buf bytes.Buffer
	out = &buf
	t.Cleanup(func() { out = os.Stdout })
	require.NoError(t, run(context.Background(), c, "status", nil))
	var st matrix.Status
	require.NoError(t, json.Unmarshal(buf.Bytes(), &st))
	return st
}

func TestSettingsPersistAcrossRuns(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, run(ctx, c, "disable", nil))
	require.NoError(t, run(ctx, c, "brightness", []string{"42"}))
	require.NoError(t, run(ctx, c, "mode", []string{"off"}))

	st := status(t, c)
	assert.False(t, st.Enabled)
	assert.Equal(t, uint8(42), st.Brightness)
	assert.Equal(t, matrix.Off, st.Mode)

	require.NoError(t, run(ctx, c, "enable", nil))
	assert.True(t, status(t, c).Enabled)
}

func TestSetStageAndReset(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, run(ctx, c, "set-stage", []string{"gamma", "on", "2.8"}))
	require.NoError(t, run(ctx, c, "set-stage", []string{"whitepoint", "on", "1", "0.9", "0.8"}))

	exp := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, run(ctx, c, "export", []string{exp}))
	b, err := os.ReadFile(exp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"value": 2.8`)

	require.NoError(t, run(ctx, c, "reset", nil))
	require.NoError(t, run(ctx, c, "import", []string{exp}))
	require.NoError(t, run(ctx, c, "export", []string{"-no-blob", exp}))
	b2, err := os.ReadFile(exp)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(b2))
}

func TestCommandErrors(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"nope", nil, errs.ErrInvalidArgument},
		{"brightness", []string{"256"}, errs.ErrInvalidArgument},
		{"mode", []string{"blink"}, errs.ErrInvalidArgument},
		{"set-stage", []string{"gamma", "on", "9"}, errs.ErrInvalidArgument},
		{"set-stage", []string{"whitepoint", "on", "1"}, errs.ErrInvalidArgument},
		{"set-stage", []string{"hue", "on"}, errs.ErrInvalidArgument},
		{"import", []string{filepath.Join(t.TempDir(), "absent.json")}, errs.ErrNotFound},
		{"animate", []string{"sparkle"}, errs.ErrNotFound},
		{"animate", []string{"fade", "-speed", "101"}, errs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(ctx, c, tt.name, tt.args)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestAnimateRunsToCompletion(t *testing.T) {
	c := testConfig(t)
	err := run(context.Background(), c, "animate", []string{"fade", "-duration", "50ms"})
	require.NoError(t, err)
}

func TestSnapshotPNG(t *testing.T) {
	c := testConfig(t)
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, run(context.Background(), c, "snapshot-png", []string{path, "-cell", "4"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestDemoAfterPersistedAnimationMode(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()
	require.NoError(t, run(ctx, c, "mode", []string{"animation"}))
	assert.Equal(t, matrix.Static, status(t, c).Mode)
	require.NoError(t, run(ctx, c, "demo", nil))
}
