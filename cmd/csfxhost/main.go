// Command csfxhost is a minimal demonstration host: it loads a YAML
// config naming a shared library, installs the fault barrier, and polls
// the library for changes on a ticker, reporting every Script.Update
// transition.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maihd/csfx/internal/config"
	"github.com/maihd/csfx/pkg/host"
	"github.com/maihd/csfx/pkg/platform"
	"github.com/maihd/csfx/pkg/script"
	"github.com/maihd/csfx/pkg/unlock"
	"github.com/maihd/csfx/pkg/watch"
)

func main() {
	configFile := flag.String("c", "csfxhost.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "csfxhost: %v\n", err)
		os.Exit(1)
	}

	configureLogging(cfg.LogLevel)

	if err := host.InitProcess(); err != nil {
		log.Fatalf("csfxhost: failed to install fault barrier: %v", err)
	}
	defer host.QuitProcess()

	plat := platform.New()

	var opts []script.Option
	if cfg.Plugin.SymbolFile != "" {
		opts = append(opts, script.WithSymbolFile(cfg.Plugin.SymbolFile))
	}
	s := script.New(plat, cfg.Plugin.Path, opts...)
	s.Init()
	defer s.Free()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Watch.Paths) > 0 {
		w := watch.New(plat, cfg.Watch.Paths, cfg.Watch.Command, watch.WithInterval(time.Duration(cfg.Watch.Interval)))
		w.Start(ctx)
		defer w.Stop()
	}

	var unlocker *unlock.Unlocker
	if cfg.Watch.Unlock.Enabled {
		var unlockOpts []unlock.Option
		if cfg.Watch.Unlock.Delete {
			unlockOpts = append(unlockOpts, unlock.WithDelete())
		}
		if cfg.Watch.Unlock.SingleThread {
			unlockOpts = append(unlockOpts, unlock.WithSingleThread())
		}
		unlocker = unlock.New(unlockOpts...)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Plugin.PollInterval))
	defer ticker.Stop()

	log.Infof("csfxhost: watching %s", cfg.Plugin.Path)

	for {
		select {
		case <-sigCh:
			log.Info("csfxhost: shutting down")
			return
		case <-ticker.C:
			state := s.Update()
			if state.String() != "None" {
				log.Infof("csfxhost: %s -> %s (errcode=%s)", cfg.Plugin.Path, state, s.ErrorCode())
			}
			if unlocker != nil && cfg.Plugin.SymbolFile != "" && state.String() == "Unload" {
				unlocker.Unlock(cfg.Plugin.SymbolFile)
			}
		}
	}
}

func configureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf(" %s:%d\t", filepath.Base(f.File), f.Line)
		},
	})
	log.SetReportCaller(true)

	logLevel := log.InfoLevel
	if level != "" {
		if parsed, err := log.ParseLevel(level); err == nil {
			logLevel = parsed
		}
	}
	log.SetLevel(logLevel)
}
