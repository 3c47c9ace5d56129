package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bone-crawler/internal/api"
	"bone-crawler/internal/audio"
	"bone-crawler/internal/config"
	"bone-crawler/internal/game"
	"bone-crawler/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlay")
	flag.Parse()

	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("💀 ================================")
	log.Println("💀  BONE CRAWLER - SERVER")
	log.Println("💀 ================================")

	appConfig, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	videoCfg := appConfig.Video
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d FPS, %dx%d view, maze %dx%d, %d skeletons",
		videoCfg.FPS, videoCfg.Width, videoCfg.Height,
		appConfig.Level.MazeWidth, appConfig.Level.MazeHeight, appConfig.Level.Skeletons)

	engine, err := game.NewEngine(game.EngineConfigFrom(appConfig))
	if err != nil {
		log.Fatalf("❌ Engine: %v", err)
	}
	engine.SetObserver(api.EngineMetrics{})
	engine.OnKill = func(e *game.Enemy) {
		log.Printf("☠️  Enemy %d down", e.ID)
	}

	painter := render.NewPainter(videoCfg.Width, videoCfg.Height, render.Options{
		Scale:       appConfig.Render.Scale,
		MinimapCell: appConfig.Render.MinimapCell,
		Palette:     render.DefaultPalette,
	})

	var beat []byte
	if appConfig.Audio.Enabled {
		beat, err = audio.RenderWAV(audio.BeatConfigFrom(appConfig))
		if err != nil {
			log.Printf("⚠️ Beat disabled: %v", err)
		} else {
			log.Printf("🎵 Beat: %.0f BPM, %d bars, %d bytes", appConfig.Audio.BPM, appConfig.Audio.Bars, len(beat))
		}
	}

	// Start debug server
	if appConfig.Debug.Enabled {
		if err := api.StartDebugServer(api.ObservabilityFromConfig(appConfig.Debug)); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	server := api.NewServer(engine, serverCfg, api.Options{
		Painter: painter,
		Beat:    beat,
	})

	// Start game engine
	engine.Start()
	log.Println("✅ Game Engine started")

	stopTracker := make(chan struct{})
	go trackEventLog(engine.EventLog(), stopTracker)

	// Start API server in goroutine
	go func() {
		addr := fmt.Sprintf(":%d", serverCfg.Port)
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("🖼️  Frame: http://localhost%s/api/frame.png", addr)
		if serverCfg.ControlToken == "" {
			log.Println("⚠️ CONTROL_TOKEN not set - player control routes are open")
		}

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	close(stopTracker)
	engine.Stop()
	log.Println("👋 Goodbye!")
}

// trackEventLog feeds the event log counters to Prometheus every few seconds.
func trackEventLog(el *game.EventLog, stop <-chan struct{}) {
	var tracker api.EventLogTracker
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tracker.Update(el.GetTotalCount(), el.GetDroppedCount())
		case <-stop:
			return
		}
	}
}
