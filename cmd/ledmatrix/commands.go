package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/arcaluminis-matrix/internal/animation"
	"github.com/coreman2200/arcaluminis-matrix/internal/config"
	"github.com/coreman2200/arcaluminis-matrix/internal/correction"
	"github.com/coreman2200/arcaluminis-matrix/internal/driver"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/matrix"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
	"github.com/coreman2200/arcaluminis-matrix/internal/notify"
	"github.com/coreman2200/arcaluminis-matrix/internal/persist"
	"github.com/coreman2200/arcaluminis-matrix/internal/preview"
	"github.com/coreman2200/arcaluminis-matrix/internal/ws"
)

var out io.Writer = os.Stdout

// session is one process worth of matrix: driver, matrix and the settings
// store it was restored from.
type session struct {
	cfg   *config.Config
	drv   driver.Driver
	m     *matrix.Matrix
	store *persist.FileStore
}

func open(cfg *config.Config) (*session, error) {
	drv, err := driver.Open(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	store, err := persist.OpenFileStore(cfg.StorePath)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	m := matrix.New(drv, notify.NewWithLogger(log.Logger), log.Logger)
	m.SetLockTimeout(cfg.LockTimeout)
	if err := m.Init(); err != nil {
		_ = drv.Close()
		return nil, err
	}
	m.SetBrightness(cfg.Brightness)

	if err := persist.Load(m, store); err != nil {
		if errs.KindOf(err) == errs.NotFound {
			log.Debug().Str("path", cfg.StorePath).Msg("no saved settings")
		} else {
			log.Warn().Err(err).Str("path", cfg.StorePath).Msg("saved settings ignored")
		}
	}
	return &session{cfg: cfg, drv: drv, m: m, store: store}, nil
}

func (s *session) save() error {
	return persist.Save(s.m, s.store)
}

func (s *session) close() {
	if err := s.m.Deinit(); err != nil {
		log.Debug().Err(err).Msg("deinit")
	}
	if err := s.drv.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close")
	}
}

type command func(ctx context.Context, s *session, args []string) error

var commands = map[string]command{
	"status":       cmdStatus,
	"enable":       cmdEnable,
	"disable":      cmdDisable,
	"brightness":   cmdBrightness,
	"mode":         cmdMode,
	"set-stage":    cmdSetStage,
	"reset":        cmdReset,
	"export":       cmdExport,
	"import":       cmdImport,
	"demo":         cmdDemo,
	"animate":      cmdAnimate,
	"snapshot-png": cmdSnapshot,
	"serve":        cmdServe,
}

func run(ctx context.Context, cfg *config.Config, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return errs.E(errs.InvalidArgument, "ledmatrix", "unknown command %q", name)
	}
	s, err := open(cfg)
	if err != nil {
		return err
	}
	defer s.close()
	return cmd(ctx, s, args)
}

func cmdStatus(ctx context.Context, s *session, args []string) error {
	b, err := json.MarshalIndent(s.m.Status(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func cmdEnable(ctx context.Context, s *session, args []string) error {
	if err := s.m.Enable(); err != nil {
		return err
	}
	return s.save()
}

func cmdDisable(ctx context.Context, s *session, args []string) error {
	if err := s.m.Disable(); err != nil {
		return err
	}
	if err := s.m.Refresh(ctx); err != nil {
		return err
	}
	return s.save()
}

func cmdBrightness(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return errs.E(errs.InvalidArgument, "brightness", "want one value")
	}
	v, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "brightness", err)
	}
	s.m.SetBrightness(uint8(v))
	return s.save()
}

func cmdMode(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return errs.E(errs.InvalidArgument, "mode", "want one mode")
	}
	mode, err := matrix.ParseMode(args[0])
	if err != nil {
		return err
	}
	if err := s.m.SetMode(mode); err != nil {
		return err
	}
	return s.save()
}

// cmdSetStage edits one correction stage:
//
//	set-stage whitepoint on 1.0 0.9 0.8
//	set-stage gamma on 2.4
//	set-stage correction off
func cmdSetStage(ctx context.Context, s *session, args []string) error {
	const op = "set-stage"
	if len(args) < 2 {
		return errs.E(errs.InvalidArgument, op, "want <stage> <on|off> [values]")
	}
	on, err := parseSwitch(args[1])
	if err != nil {
		return err
	}
	vals := make([]float64, 0, 3)
	for _, a := range args[2:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, op, err)
		}
		vals = append(vals, v)
	}
	want := func(n int) error {
		if len(vals) != n && len(vals) != 0 {
			return errs.E(errs.InvalidArgument, op, "%s takes %d values", args[0], n)
		}
		return nil
	}

	c := s.m.Correction().Config()
	switch args[0] {
	case "correction":
		c.Enabled = on
	case "whitepoint":
		if err := want(3); err != nil {
			return err
		}
		c.WhitePoint.Enabled = on
		if len(vals) == 3 {
			c.WhitePoint.R, c.WhitePoint.G, c.WhitePoint.B = vals[0], vals[1], vals[2]
		}
	case "gamma":
		if err := want(1); err != nil {
			return err
		}
		c.Gamma.Enabled = on
		if len(vals) == 1 {
			c.Gamma.Value = vals[0]
		}
	case "brightness":
		if err := want(1); err != nil {
			return err
		}
		c.Brightness.Enabled = on
		if len(vals) == 1 {
			c.Brightness.Factor = vals[0]
		}
	case "saturation":
		if err := want(1); err != nil {
			return err
		}
		c.Saturation.Enabled = on
		if len(vals) == 1 {
			c.Saturation.Factor = vals[0]
		}
	default:
		return errs.E(errs.InvalidArgument, op, "unknown stage %q", args[0])
	}
	if err := s.m.SetCorrection(c); err != nil {
		return err
	}
	return s.save()
}

func cmdReset(ctx context.Context, s *session, args []string) error {
	if err := s.m.SetCorrection(correction.DefaultConfig()); err != nil {
		return err
	}
	return s.save()
}

func cmdExport(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	noBlob := fs.Bool("no-blob", false, "fail on blob values instead of base64")
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}
	data, err := persist.Export(s.m, persist.ExportOptions{AllowBlob: !*noBlob})
	if err != nil {
		return err
	}
	if err := persist.WriteFile(path, data); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("exported")
	return nil
}

func cmdImport(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return errs.E(errs.InvalidArgument, "import", "want a file")
	}
	data, err := persist.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := persist.Import(s.m, data); err != nil {
		return err
	}
	log.Info().Str("path", args[0]).Msg("imported")
	return s.save()
}

func cmdDemo(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	hold := fs.Duration("hold", 0, "keep the scene lit for this long")
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.InvalidArgument, "demo", err)
	}
	if err := drawDemo(s.m); err != nil {
		return err
	}
	if err := s.m.Refresh(ctx); err != nil {
		return err
	}
	return sleep(ctx, *hold)
}

// drawDemo paints a test card with every drawing primitive.
func drawDemo(m *matrix.Matrix) error {
	if m.Mode() != matrix.Static {
		if err := m.SetMode(matrix.Static); err != nil {
			return err
		}
	}
	steps := []func() error{
		m.Clear,
		func() error { return m.DrawRect(0, 0, model.Width, model.Height, model.RGB{B: 160}, false) },
		func() error { return m.DrawCircle(15, 15, 10, model.RGB{R: 40, G: 0, B: 60}, true) },
		func() error { return m.DrawCircle(15, 15, 10, model.RGB{R: 255, G: 120}, false) },
		func() error { return m.DrawLine(0, 0, 31, 31, model.RGB{G: 200}) },
		func() error { return m.DrawLine(31, 0, 0, 31, model.RGB{G: 200}) },
		func() error { return m.DrawText(2, 12, "LED", model.RGB{R: 255, G: 255, B: 255}) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type animFlags struct {
	fs        *flag.FlagSet
	duration  *time.Duration
	speed     *uint
	loop      *bool
	primary   *string
	secondary *string
}

func newAnimFlags(name string) *animFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &animFlags{
		fs:        fs,
		duration:  fs.Duration("duration", 5*time.Second, "run time, 0 with -loop runs until stopped"),
		speed:     fs.Uint("speed", animation.DFLT_SPEED, "speed 0..100"),
		loop:      fs.Bool("loop", false, "restart when the duration ends"),
		primary:   fs.String("primary", "#ff0000", "primary color"),
		secondary: fs.String("secondary", "#0000ff", "secondary color"),
	}
}

func (a *animFlags) descriptor(kind string, fps int) (animation.Descriptor, error) {
	p, err := parseColor(*a.primary)
	if err != nil {
		return animation.Descriptor{}, err
	}
	q, err := parseColor(*a.secondary)
	if err != nil {
		return animation.Descriptor{}, err
	}
	if *a.speed > animation.MAX_SPEED {
		return animation.Descriptor{}, errs.E(errs.InvalidArgument, "animate", "speed %d", *a.speed)
	}
	return animation.Descriptor{
		Kind:       animation.Kind(kind),
		Duration:   *a.duration,
		FrameDelay: time.Second / time.Duration(fps),
		Loop:       *a.loop,
		Primary:    p,
		Secondary:  q,
		Speed:      uint8(*a.speed),
	}, nil
}

// startAnimation checks the kind against the registry first so an unknown
// one is reported with the known ones.
func startAnimation(m *matrix.Matrix, d animation.Descriptor) error {
	reg, err := m.Animations()
	if err != nil {
		return err
	}
	if _, ok := reg.Get(d.Kind); !ok {
		return errs.E(errs.NotFound, "animate", "no animation %q (have %v)", d.Kind, reg.List())
	}
	return m.StartAnimation(d)
}

func cmdAnimate(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return errs.E(errs.InvalidArgument, "animate", "want a kind")
	}
	af := newAnimFlags("animate")
	if err := af.fs.Parse(args[1:]); err != nil {
		return errs.Wrap(errs.InvalidArgument, "animate", err)
	}
	d, err := af.descriptor(args[0], s.cfg.FPS)
	if err != nil {
		return err
	}

	sub, err := s.m.Events().Subscribe(notify.DFLT_BUFFER)
	if err != nil {
		return err
	}
	defer func() { _ = s.m.Events().Unsubscribe(sub.ID) }()

	if err := startAnimation(s.m, d); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("interrupted")
			return s.m.StopAnimation()
		case ev := <-sub.C:
			switch ev.Kind {
			case notify.AnimationDone:
				log.Info().Str("animation", ev.Animation).Msg(ev.Summary)
				return nil
			case notify.AnimationFailed:
				return errs.E(errs.IOFailure, "animate", "%s: %s", ev.Summary, ev.Detail)
			}
		}
	}
}

func cmdSnapshot(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("snapshot-png", flag.ContinueOnError)
	cell := fs.Int("cell", preview.DFLT_CELL, "pixels per LED")
	anim := fs.String("animation", "", "render this animation instead of the demo scene")
	after := fs.Duration("after", 500*time.Millisecond, "how long to run -animation before the shot")
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}

	if *anim == "" {
		if err := drawDemo(s.m); err != nil {
			return err
		}
		if err := s.m.Refresh(ctx); err != nil {
			return err
		}
	} else {
		d := animation.Descriptor{Kind: animation.Kind(*anim), Loop: true, Speed: animation.DFLT_SPEED,
			Primary: model.RGB{R: 255}, Secondary: model.RGB{B: 255},
			FrameDelay: time.Second / time.Duration(s.cfg.FPS)}
		if d.Kind == animation.Fade {
			d.Duration = 2 * *after
		}
		if err := startAnimation(s.m, d); err != nil {
			return err
		}
		if err := sleep(ctx, *after); err != nil {
			return err
		}
		if err := s.m.StopAnimation(); err != nil && errs.KindOf(err) != errs.InvalidState {
			return err
		}
	}
	f := s.m.Output()
	if err := preview.SavePNG(path, &f, preview.Options{Cell: *cell}); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("snapshot written")
	return nil
}

func cmdServe(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", s.cfg.Preview.Addr, "HTTP listen address")
	anim := fs.String("animation", "", "start this animation, looping")
	if err := fs.Parse(args); err != nil {
		return errs.Wrap(errs.InvalidArgument, "serve", err)
	}

	state := ws.NewState(s.m, s.cfg.Preview.FPS, log.Logger)
	state.Driver = s.drv.String()
	mux := http.NewServeMux()
	state.Routes(mux)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if *anim != "" {
		d := animation.Descriptor{Kind: animation.Kind(*anim), Loop: true, Speed: animation.DFLT_SPEED,
			Primary: model.RGB{R: 255}, Secondary: model.RGB{B: 255},
			FrameDelay: time.Second / time.Duration(s.cfg.FPS)}
		if d.Kind == animation.Fade {
			d.Duration = 3 * time.Second
		}
		if err := startAnimation(s.m, d); err != nil {
			return err
		}
	} else if err := drawDemo(s.m); err != nil {
		return err
	}

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Str("driver", state.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
		close(srvErr)
	}()
	runErr := make(chan error, 1)
	go func() { runErr <- state.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-srvErr:
		if err != nil {
			cancelRun()
			<-runErr
			return errs.Wrap(errs.IOFailure, "serve", err)
		}
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	return <-runErr
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// parseWithPath parses flags that may come before or after one path arg.
func parseWithPath(fs *flag.FlagSet, args []string) (string, error) {
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	if err := fs.Parse(args); err != nil {
		return "", errs.Wrap(errs.InvalidArgument, fs.Name(), err)
	}
	if fs.NArg() != 1 {
		return "", errs.E(errs.InvalidArgument, fs.Name(), "want a file")
	}
	return fs.Arg(0), nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, errs.E(errs.InvalidArgument, "set-stage", "want on or off, got %q", s)
}

func parseColor(s string) (model.RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return model.RGB{}, errs.Wrap(errs.InvalidArgument, "color", err)
	}
	r, g, b := c.RGB255()
	return model.RGB{R: r, G: g, B: b}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return nil
}
