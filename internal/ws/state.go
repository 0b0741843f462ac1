// Package ws serves a read-only live view of a matrix: refreshed frames and
// the event stream over websockets, plus health and PNG snapshots over HTTP.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/animation"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
	"github.com/coreman2200/arcaluminis-matrix/internal/notify"
	"github.com/coreman2200/arcaluminis-matrix/internal/preview"
)

const (
	DFLT_FPS           = 15
	WRITE_DEADLINE     = 200 * time.Millisecond
	EVENT_SUBSCRIPTION = 64
)

type frameMsg struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

type State struct {
	mu  sync.RWMutex
	M   *matrix.Matrix
	FPS int
	// Driver names the transmitter for /health.
	Driver string

	frameID     uint64
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	up          websocket.Upgrader
	log         zerolog.Logger
}

func NewState(m *matrix.Matrix, fps int, log zerolog.Logger) *State {
	if fps <= 0 {
		fps = DFLT_FPS
	}
	return &State{
		M:           m,
		FPS:         fps,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:         log.With().Str("component", "ws").Logger(),
	}
}

// Routes registers the handlers on mux.
func (s *State) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/events", s.HandleEventsWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/snapshot.png", s.HandleSnapshot)
}

// Run drives the preview until ctx ends. While no animation is running it
// also refreshes the matrix so static drawing reaches the strip; animations
// refresh on their own ticks. A new frame is broadcast whenever the refresh
// count moves.
func (s *State) Run(ctx context.Context) error {
	sub, err := s.M.Events().Subscribe(EVENT_SUBSCRIPTION)
	if err != nil {
		return err
	}
	defer func() { _ = s.M.Events().Unsubscribe(sub.ID) }()

	ticker := time.NewTicker(time.Second / time.Duration(s.FPS))
	defer ticker.Stop()
	var seen uint64
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				s.closeAll()
				return nil
			}
			s.pushEvent(ev)
		case <-ticker.C:
			st := s.M.Status()
			if !st.Initialized {
				continue
			}
			if st.AnimationState != animation.Running {
				if err := s.M.Refresh(ctx); err != nil {
					s.log.Debug().Err(err).Msg("refresh")
				}
				st = s.M.Status()
			}
			if st.Refreshes == seen {
				continue
			}
			seen = st.Refreshes
			f := s.M.Output()
			s.broadcastFrame(f.Bytes())
		}
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	s.attach(w, r, s.clients)
}

func (s *State) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	s.attach(w, r, s.diagClients)
}

// attach upgrades the request and keeps conn in set until the peer goes
// away. Incoming messages are discarded; the view is read-only.
func (s *State) attach(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade")
		return
	}
	s.mu.Lock()
	set[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(set, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Clients reports the number of attached frame and event viewers.
func (s *State) Clients() (frames, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), len(s.diagClients)
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"fps":      s.FPS,
		"driver":   s.Driver,
		"clients":  len(s.clients),
		"status":   s.M.Status(),
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleSnapshot renders the last transmitted frame as a PNG. ?cell=N sets
// the pixels per LED.
func (s *State) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	o := preview.DefaultOptions
	if c := r.URL.Query().Get("cell"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			http.Error(w, "bad cell", http.StatusBadRequest)
			return
		}
		o.Cell = n
	}
	f := s.M.Output()
	w.Header().Set("Content-Type", "image/png")
	if err := preview.WritePNG(w, &f, o); err != nil {
		code := http.StatusInternalServerError
		if errs.KindOf(err) == errs.InvalidArgument {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
	}
}

func (s *State) broadcastFrame(rgb []byte) {
	s.mu.Lock()
	s.frameID++
	b, _ := json.Marshal(frameMsg{T: time.Now().UnixNano(), FrameID: s.frameID, RGB: rgb})
	s.mu.Unlock()
	s.write(s.clients, b)
}

func (s *State) pushEvent(ev notify.Event) {
	b, _ := json.Marshal(ev)
	s.write(s.diagClients, b)
}

func (s *State) write(set map[*websocket.Conn]bool, b []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range set {
		c.SetWriteDeadline(time.Now().Add(WRITE_DEADLINE))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write")
		}
	}
}

func (s *State) closeAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for _, set := range []map[*websocket.Conn]bool{s.clients, s.diagClients} {
		for c := range set {
			_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WRITE_DEADLINE))
		}
	}
}

// DecodeFrame turns a frame message payload back into a frame.
func DecodeFrame(data []byte) (uint64, model.Frame, error) {
	var msg frameMsg
	var f model.Frame
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, f, errs.Wrap(errs.InvalidArgument, "ws.DecodeFrame", err)
	}
	if len(msg.RGB) != model.PixelCount*3 {
		return 0, f, errs.E(errs.InvalidArgument, "ws.DecodeFrame", "rgb length %d", len(msg.RGB))
	}
	for i := range f {
		f[i] = model.RGB{R: msg.RGB[i*3], G: msg.RGB[i*3+1], B: msg.RGB[i*3+2]}
	}
	return msg.FrameID, f, nil
}
