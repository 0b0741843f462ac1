package ws

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
	"github.com/coreman2200/arcaluminis-matrix/internal/notify"
)

func newServer(t *testing.T) (*State, *matrix.Matrix, string) {
	t.Helper()
	m := matrix.New(nil, nil, zerolog.Nop())
	require.NoError(t, m.Init())
	m.SetBrightness(matrix.MAX_BRIGHTNESS)
	m.Correction().SetEnabled(false)

	s := NewState(m, 50, zerolog.Nop())
	s.Driver = "sim"
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		_ = m.Deinit()
	})
	return s, m, srv.URL
}

func dial(t *testing.T, url, path string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFramesStream(t *testing.T) {
	s, m, url := newServer(t)
	require.NoError(t, m.SetPixel(1, 2, model.RGB{R: 200, G: 7}))

	c := dial(t, url, "/ws")
	require.Eventually(t, func() bool { n, _ := s.Clients(); return n == 1 }, time.Second, 5*time.Millisecond)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	id, f, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, model.RGB{R: 200, G: 7}, f.At(1, 2))
}

func TestEventsStream(t *testing.T) {
	s, m, url := newServer(t)
	c := dial(t, url, "/events")
	require.Eventually(t, func() bool { _, n := s.Clients(); return n == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Disable())
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var ev notify.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, notify.Disabled, ev.Kind)
}

func TestHealthAndSnapshot(t *testing.T) {
	_, _, url := newServer(t)

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "sim", h["driver"])
	assert.Contains(t, h, "status")

	resp2, err := http.Get(url + "/snapshot.png?cell=4")
	require.NoError(t, err)
	defer resp2.Body.Close()
	img, err := png.Decode(resp2.Body)
	require.NoError(t, err)
	assert.Equal(t, model.Width*4, img.Bounds().Dx())

	resp3, err := http.Get(url + "/snapshot.png?cell=999")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestDecodeFrameRejectsShort(t *testing.T) {
	_, _, err := DecodeFrame([]byte(`{"frame_id":1,"rgb":"AAAA"}`))
	assert.Error(t, err)
}
