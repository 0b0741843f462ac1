package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/correction"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

func newMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	m := matrix.New(nil, nil, zerolog.Nop())
	require.NoError(t, m.Init())
	t.Cleanup(func() { _ = m.Deinit() })
	return m
}

func sampleRecord() Record {
	c := correction.DefaultConfig()
	c.WhitePoint = correction.WhitePoint{Enabled: true, R: 1.1, G: 0.95, B: 0.8}
	c.Gamma.Value = 2.5
	c.Saturation = correction.Saturation{Enabled: true, Factor: 1.3}
	return Record{Mode: matrix.Off, Brightness: 77, Enabled: false, Correction: c}
}

func everyType() map[string]map[string]Value {
	return map[string]map[string]Value{
		"misc": {
			"u8":   U8(255),
			"u16":  U16(65535),
			"u32":  U32(4294967295),
			"i8":   I8(-128),
			"i16":  I16(-32768),
			"i32":  I32(-2147483648),
			"f":    F64(0.1),
			"b":    B(true),
			"s":    S("hello \"matrix\""),
			"blob": Bytes([]byte{0, 1, 2, 254, 255}),
		},
	}
}

func TestStoreGetSet(t *testing.T) {
	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "kv.yaml"))
	require.NoError(t, err)

	for name, s := range map[string]Store{"mem": NewMemStore(), "file": fs} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("matrix", "brightness", U8(42)))
			v, err := s.Get("matrix", "brightness", Uint8)
			require.NoError(t, err)
			assert.Equal(t, uint8(42), v.V)

			_, err = s.Get("matrix", "nope", Uint8)
			assert.True(t, errors.Is(err, errs.ErrNotFound))
			_, err = s.Get("matrix", "brightness", Float)
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument))

			err = s.Set("", "k", U8(1))
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
			err = s.Set("ns", "k", Value{T: Uint8, V: 300})
			assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
		})
	}
}

func TestFileStorePersistsEveryType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.yaml")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	for ns, keys := range everyType() {
		for k, v := range keys {
			require.NoError(t, s.Set(ns, k, v))
		}
	}
	require.NoError(t, s.Commit())

	back, err := OpenFileStore(path)
	require.NoError(t, err)
	dump, err := back.Dump()
	require.NoError(t, err)
	assert.Equal(t, everyType(), dump)
}

func TestOpenFileStoreErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("matrix:\n  brightness: {type: uint8, value: 999}\n"), 0o644))
	_, err := OpenFileStore(bad)
	assert.True(t, errors.Is(err, errs.ErrInvalidArgument))

	s, err := OpenFileStore(filepath.Join(dir, "missing", "kv.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "b", B(true)))
	assert.True(t, errors.Is(s.Commit(), errs.ErrIOFailure))
}

func TestSaveLoadConfig(t *testing.T) {
	s := NewMemStore()
	want := sampleRecord()
	require.NoError(t, SaveConfig(s, want))

	got, err := LoadConfig(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadLeavesMatrixOnMissingKey(t *testing.T) {
	m := newMatrix(t)
	before := Capture(m)

	s := NewMemStore()
	require.NoError(t, SaveConfig(s, sampleRecord()))
	dump, _ := s.Dump()
	delete(dump[NS_COLOR], "gamma")
	partial := NewMemStore()
	for ns, keys := range dump {
		for k, v := range keys {
			require.NoError(t, partial.Set(ns, k, v))
		}
	}

	err := Load(m, partial)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Equal(t, before, Capture(m))

	require.NoError(t, Load(m, s))
	assert.Equal(t, sampleRecord(), Capture(m))
}

func TestExportImportMatrix(t *testing.T) {
	src := newMatrix(t)
	require.NoError(t, sampleRecord().ApplyTo(src))
	data, err := Export(src, DefaultExportOptions)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"format_version": 1`)
	assert.Contains(t, string(data), `"type": "float"`)

	dst := newMatrix(t)
	require.NoError(t, Import(dst, data))
	got, want := Capture(dst), Capture(src)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Brightness, got.Brightness)
	assert.InDelta(t, want.Correction.Gamma.Value, got.Correction.Gamma.Value, 1e-9)
	assert.InDelta(t, want.Correction.WhitePoint.G, got.Correction.WhitePoint.G, 1e-9)
	assert.Equal(t, want.Correction.Saturation.Enabled, got.Correction.Saturation.Enabled)
}

func TestImportIsAllOrNothing(t *testing.T) {
	src := newMatrix(t)
	good, err := Export(src, DefaultExportOptions)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit func(string) string
		kind error
	}{
		{"gamma out of range", func(s string) string {
			return strings.Replace(s, `"value": 2.2`, `"value": 9`, 1)
		}, errs.ErrInvalidArgument},
		{"uint8 overflow", func(s string) string {
			return strings.Replace(s, `"value": 128`, `"value": 300`, 1)
		}, errs.ErrInvalidArgument},
		{"wrong type tag", func(s string) string {
			return strings.Replace(s, `"type": "bool"`, `"type": "uint8"`, 1)
		}, errs.ErrInvalidArgument},
		{"unknown type", func(s string) string {
			return strings.Replace(s, `"type": "float"`, `"type": "double"`, 1)
		}, errs.ErrInvalidArgument},
		{"future version", func(s string) string {
			return strings.Replace(s, `"format_version": 1`, `"format_version": 2`, 1)
		}, errs.ErrUnsupported},
		{"truncated", func(s string) string { return s[:len(s)/2] }, errs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newMatrix(t)
			dst.SetBrightness(3)
			before := Capture(dst)

			bad := tt.edit(string(good))
			require.NotEqual(t, string(good), bad)
			err := Import(dst, []byte(bad))
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, before, Capture(dst))
		})
	}
}

func TestStoreExportImportEveryType(t *testing.T) {
	src := NewMemStore()
	for ns, keys := range everyType() {
		for k, v := range keys {
			require.NoError(t, src.Set(ns, k, v))
		}
	}
	data, err := ExportStore(src, DefaultExportOptions)
	require.NoError(t, err)

	dst := NewMemStore()
	require.NoError(t, ImportStore(dst, data))
	dump, _ := dst.Dump()
	assert.Equal(t, everyType(), dump)

	_, err = ExportStore(src, ExportOptions{AllowBlob: false})
	assert.True(t, errors.Is(err, errs.ErrUnsupported))
}

func TestValueJSONRejectsLooseEntries(t *testing.T) {
	tests := []string{
		`{"type": "int8", "value": -129}`,
		`{"type": "uint16", "value": 1.5}`,
		`{"type": "blob", "value": "not base64!"}`,
		`{"type": "string", "value": 7}`,
		`{"type": "bool"}`,
		`{"type": "bool", "value": true, "extra": 1}`,
	}
	for _, in := range tests {
		var v Value
		err := json.Unmarshal([]byte(in), &v)
		assert.Error(t, err, in)
	}
}

func TestReadFileKinds(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, WriteFile(path, []byte("{}")))
	b, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestLoadRestoresAnimationModeAsStatic(t *testing.T) {
	for _, mode := range []matrix.Mode{matrix.Animation, matrix.Custom} {
		t.Run(mode.String(), func(t *testing.T) {
			s := NewMemStore()
			r := sampleRecord()
			r.Mode = mode
			r.Enabled = true
			require.NoError(t, SaveConfig(s, r))

			m := newMatrix(t)
			require.NoError(t, Load(m, s))
			assert.Equal(t, matrix.Static, m.Mode())
			assert.NoError(t, m.SetPixel(1, 1, model.RGB{R: 9}))

			got, err := LoadConfig(s)
			require.NoError(t, err)
			assert.Equal(t, mode, got.Mode)
		})
	}
}
