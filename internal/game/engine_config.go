package game

import (
	"time"

	"bone-crawler/internal/config"
	"bone-crawler/internal/game/skeleton"
)

// EngineConfigFrom maps application settings onto an engine configuration.
// A zero level seed is replaced with one drawn from the clock.
func EngineConfigFrom(app config.AppConfig) EngineConfig {
	seed := app.Level.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return EngineConfig{
		TickRate:     app.Video.FPS,
		Width:        app.Video.Width,
		Height:       app.Video.Height,
		FOV:          app.Camera.FOV(),
		NearPlane:    app.Render.NearPlane,
		Workers:      app.Render.Workers,
		Seed:         seed,
		EventLogPath: app.Server.EventLogPath,
		Level: LevelConfig{
			MazeWidth:    app.Level.MazeWidth,
			MazeHeight:   app.Level.MazeHeight,
			Skeletons:    app.Level.Skeletons,
			PlainEnemies: app.Level.PlainEnemies,
			SafeRadius:   app.Level.SafeRadius,
		},
		Movement: MovementConfig{
			MoveSpeed: app.Movement.MoveSpeed,
			TurnSpeed: app.Movement.TurnSpeed,
		},
		Combat: Resolver{
			Range:     app.Combat.Range,
			HalfAngle: app.Combat.HalfAngle,
			BatchMin:  app.Combat.BatchMin,
			BatchMax:  app.Combat.BatchMax,
		},
		Cooldown: app.Combat.CooldownTicks,
		Body: skeleton.Config{
			Threshold: app.Fracture.Threshold,
			SpeedMin:  app.Fracture.SpeedMin,
			SpeedMax:  app.Fracture.SpeedMax,
		},
		Physics: skeleton.Physics{
			Damping:            app.Fracture.Damping,
			Shrink:             app.Fracture.Shrink,
			MaxExplosionFrames: app.Fracture.MaxExplosionFrames,
		},
		Limits: DefaultLimits,
	}
}
