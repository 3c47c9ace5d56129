// =============================================================================
// BONE CRAWLER - TERMINAL CLIENT
// =============================================================================
// Runs the engine in-process and plays it in the terminal:
// - The view is sized to the terminal at startup and scaled on resize
// - Keys become engine commands, one frame's worth per press
// - The synthwave loop plays through the sound card with -music
//
// USAGE:
//   go run ./cmd/crawler            play
//   go run ./cmd/crawler -dump      print the generated maze and exit
// =============================================================================
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"bone-crawler/internal/audio"
	"bone-crawler/internal/config"
	"bone-crawler/internal/game"
	"bone-crawler/internal/terminal"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

func main() {
	configPath := flag.String("config", "", "YAML config overlay")
	dump := flag.Bool("dump", false, "print the maze and exit")
	music := flag.Bool("music", false, "play the soundtrack")
	flag.Parse()

	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load(".env")
	}

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}

	if *dump {
		engine, err := game.NewEngine(game.EngineConfigFrom(appConfig))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Engine: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(engine.Level().Tiles.String())
		return
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init screen: %v\n", err)
		os.Exit(1)
	}

	// Log lines would tear the screen
	log.SetOutput(io.Discard)

	err = run(screen, appConfig, *music)
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(screen tcell.Screen, appConfig config.AppConfig, music bool) error {
	// Cells are roughly twice as tall as wide
	cols, rows := screen.Size()
	if cols > 0 && rows > 1 {
		appConfig.Video.Width = cols
		appConfig.Video.Height = 2 * (rows - 1)
	}
	// No file writes from a terminal session
	appConfig.Server.EventLogPath = ""

	engine, err := game.NewEngine(game.EngineConfigFrom(appConfig))
	if err != nil {
		return errors.Wrap(err, "engine")
	}

	player := audio.NewPlayer()
	if music {
		// Non-fatal, the game can run without sound
		if path := appConfig.Audio.MusicPath; path != "" {
			_ = player.StartFile(path, appConfig.Audio.Volume)
		} else {
			_ = player.Start(audio.BeatConfigFrom(appConfig))
		}
	}
	defer player.Close()

	fps := appConfig.Video.FPS
	keys := terminal.Keymap{
		Step:  appConfig.Movement.MoveSpeed / float64(fps),
		Angle: appConfig.Movement.TurnSpeed / float64(fps),
	}
	presenter := terminal.NewPresenter(screen)

	engine.Start()
	defer engine.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				a := keys.Translate(ev)
				switch {
				case a.Quit:
					return nil
				case a.Music:
					player.Toggle()
				case a.Valid:
					engine.Submit(a.Command)
				}
			case *tcell.EventResize:
				screen.Sync()
			}

		case <-ticker.C:
			if snap, ok := engine.Snapshot(); ok {
				presenter.Draw(&snap)
			}
		}
	}
}
