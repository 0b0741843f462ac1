package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/arcaluminis-matrix/internal/config"
	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

const usage = `usage: ledmatrix [flags] <command> [args]

commands:
  status                          print the matrix status
  enable | disable                switch output on or off
  brightness <0-255>              set the global brightness
  mode <static|animation|custom|off>
  set-stage <stage> <on|off> [v]  whitepoint r g b | gamma v | brightness f | saturation f | correction
  reset                           restore default color correction
  export <file> [-no-blob]        write settings as JSON
  import <file>                   load settings from JSON
  demo [-hold d]                  draw the demo scene
  animate <kind> [flags]          run an animation until it ends or ^C
  snapshot-png <file> [flags]     render a frame to PNG
  serve [flags]                   live preview over HTTP/websocket

flags:
`

func main() {
	// ---- Flags (config file overrides them) ----
	var (
		configPath = flag.String("config", "ledmatrix.yaml", "path to config yaml")
		driverName = flag.String("driver", "sim", "driver: spi | spi-raw | console | sim")
		spiDev     = flag.String("spi", "", "SPI port name, empty for the first one")
		brightness = flag.Uint("brightness", 128, "default brightness 0..255")
		fps        = flag.Int("fps", 30, "frames per second for animations")
		storePath  = flag.String("store", "matrix-kv.yaml", "settings store path")
		level      = flag.String("log-level", "info", "debug | info | warn | error")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg := config.Default()
	cfg.Driver = *driverName
	cfg.SPI.Dev = *spiDev
	cfg.Brightness = uint8(min(*brightness, 255))
	cfg.FPS = *fps
	cfg.StorePath = *storePath
	cfg.LogLevel = *level
	if err := config.Overlay(*configPath, cfg); err != nil {
		if errs.KindOf(err) == errs.NotFound {
			log.Debug().Str("path", *configPath).Msg("no config file; using flags")
		} else {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// ---- Graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error().Err(err).Str("command", flag.Arg(0)).Msg("failed")
		stop()
		os.Exit(1)
	}
}
