package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/config"
	"github.com/Carmen-Shannon/oxy-canvas/engine"
	"github.com/Carmen-Shannon/oxy-canvas/engine/window"
)

func init() {
	// GLFW and the surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to a YAML configuration file (defaults are used when empty)")
	mode := flag.String("mode", "", "Initial render mode: shader, image, video or depthMerge")
	profile := flag.Bool("profile", false, "Log a performance summary every second")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	level, _ := cfg.Log.SlogLevel()
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	log := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		log.Error("failed to create window", "error", err)
		return 1
	}
	defer w.Close()

	eng := engine.NewEngine(cfg,
		engine.WithWindow(w),
		engine.WithProfiling(*profile),
	)
	defer eng.Release()

	if err := eng.Init(ctx); err != nil {
		var initErr *common.InitError
		if errors.As(err, &initErr) {
			fmt.Fprintln(os.Stderr, "WebGPU is not supported on this system")
			log.Debug("gpu bootstrap failed", "error", err)
			return 1
		}
		log.Error("failed to initialize canvas", "error", err)
		return 1
	}

	if err := eng.Run(ctx); err != nil {
		log.Error("canvas stopped", "error", err)
		return 1
	}
	log.Info("canvas closed")
	return 0
}

// loadConfig loads the file at path, or the defaults when path is empty, then applies the mode flag.
func loadConfig(path, mode string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if mode != "" {
		cfg.Renderer.Mode = mode
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
