package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/matheus3301/wavault/internal/config"
	"github.com/matheus3301/wavault/internal/daemon"
	"github.com/matheus3301/wavault/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	driverFlag := flag.String("driver", "", "engine driver: fs, sqlite, memory (overrides config)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	driver := *driverFlag
	var mediaTimeout time.Duration
	if cfg, err := config.Load(session.ConfigPath()); err == nil {
		if driver == "" {
			driver = cfg.Driver
		}
		if cfg.MediaTimeoutSec > 0 {
			mediaTimeout = time.Duration(cfg.MediaTimeoutSec) * time.Second
		}
	}
	if err := (&config.Config{Driver: driver}).Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName:  sessionName,
			Driver:       driver,
			MediaTimeout: mediaTimeout,
		}),
	)

	app.Run()
}
