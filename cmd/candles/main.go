// Candles - blow out virtual birthday candles with a fingertip and a breath.
// Serves the overlay page, accepts a browser station for camera and
// microphone, and runs the gesture pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-candles/internal/config"
	"github.com/teslashibe/go-candles/internal/log"
	"github.com/teslashibe/go-candles/pkg/audioio"
	"github.com/teslashibe/go-candles/pkg/candles"
	"github.com/teslashibe/go-candles/pkg/landmark"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	app, err := candles.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A failed model load keeps serving so the overlay can show the error.
	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
	}
	defer app.Shutdown()

	log.Info("🎂 candles ready",
		"port", cfg.Web.Port,
		"video", cfg.Video,
		"audio", cfg.Audio.Backend,
		"recognizer", cfg.Landmark.Backend,
	)

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and flags,
// in that order.
func loadConfig() (candles.Config, error) {
	cfg := candles.DefaultConfig()

	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}

	configPath := flag.String("config", config.ConfigPath(config.DefaultConfigPath), "Config file (YAML or JSON)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	video := flag.String("video", "", "Video source: station, camera")
	audio := flag.String("audio", "", "Audio source: station, mock")
	recognizer := flag.String("recognizer", "", "Landmark recognizer: onnx, remote")
	model := flag.String("model", "", "Hand landmark ONNX model path")
	autoStart := flag.Bool("auto-start", false, "Acquire camera and microphone without waiting for the start button")
	flag.Parse()

	if err := cfg.LoadFile(*configPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	cfg.LoadEnvConfig()

	if *port != 0 {
		cfg.Web.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *video != "" {
		cfg.Video = candles.VideoBackend(*video)
	}
	if *audio != "" {
		cfg.Audio.Backend = audioio.Backend(*audio)
	}
	if *recognizer != "" {
		cfg.Landmark.Backend = landmark.Backend(*recognizer)
	}
	if *model != "" {
		cfg.Landmark.ModelPath = *model
	}
	if *autoStart {
		cfg.AutoStart = true
	}
	return cfg, nil
}
