// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for dungeon, combat and server settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. Validate runs last so bad input is rejected before
// a level is built.
package config

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid configuration")

// =============================================================================
// VIDEO CONFIGURATION
// =============================================================================

// VideoConfig holds the rendered view size and frame rate.
type VideoConfig struct {
	Width  int `yaml:"width"`  // Screen columns cast per frame
	Height int `yaml:"height"` // Screen rows
	FPS    int `yaml:"fps"`    // Frames per second (also the engine tick rate)
}

// DefaultVideo returns the default video configuration.
func DefaultVideo() VideoConfig {
	return VideoConfig{
		Width:  320,
		Height: 200,
		FPS:    30,
	}
}

// VideoFromEnv applies environment overrides to cfg.
func VideoFromEnv(cfg VideoConfig) VideoConfig {
	if w := getEnvInt("VIEW_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("VIEW_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("VIEW_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	return cfg
}

// =============================================================================
// LEVEL CONFIGURATION
// =============================================================================

// LevelConfig sizes the maze and its population.
type LevelConfig struct {
	MazeWidth    int     `yaml:"maze_width"`    // Cells across
	MazeHeight   int     `yaml:"maze_height"`   // Cells down
	Seed         int64   `yaml:"seed"`          // 0 picks a seed from the clock
	Skeletons    int     `yaml:"skeletons"`     // Skeletal enemies to spawn
	PlainEnemies int     `yaml:"plain_enemies"` // One-hit enemies to spawn
	SafeRadius   float64 `yaml:"safe_radius"`   // No spawns this close to the player
}

// DefaultLevel returns the default level configuration.
func DefaultLevel() LevelConfig {
	return LevelConfig{
		MazeWidth:  12,
		MazeHeight: 12,
		Skeletons:  10,
		SafeRadius: 2,
	}
}

// LevelFromEnv applies environment overrides to cfg.
func LevelFromEnv(cfg LevelConfig) LevelConfig {
	if w := getEnvInt("MAZE_WIDTH", 0); w > 0 {
		cfg.MazeWidth = w
	}
	if h := getEnvInt("MAZE_HEIGHT", 0); h > 0 {
		cfg.MazeHeight = h
	}
	if v := os.Getenv("MAZE_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}
	if n := getEnvInt("SKELETONS", -1); n >= 0 {
		cfg.Skeletons = n
	}
	return cfg
}

// =============================================================================
// CAMERA & MOVEMENT
// =============================================================================

// CameraConfig holds view settings.
type CameraConfig struct {
	FOVDegrees float64 `yaml:"fov_degrees"` // Horizontal field of view
}

// DefaultCamera returns the default camera configuration.
func DefaultCamera() CameraConfig {
	return CameraConfig{FOVDegrees: 66}
}

// FOV returns the field of view in radians.
func (c CameraConfig) FOV() float64 {
	return c.FOVDegrees * math.Pi / 180
}

// MovementConfig holds player speeds.
type MovementConfig struct {
	MoveSpeed float64 `yaml:"move_speed"` // World units per second
	TurnSpeed float64 `yaml:"turn_speed"` // Radians per second
}

// DefaultMovement returns the default movement configuration.
func DefaultMovement() MovementConfig {
	return MovementConfig{
		MoveSpeed: 3.0,
		TurnSpeed: 2.5,
	}
}

// =============================================================================
// COMBAT & FRACTURE
// =============================================================================

// CombatConfig holds melee tuning.
type CombatConfig struct {
	Range         float64 `yaml:"range"`          // Reach in world units
	HalfAngle     float64 `yaml:"half_angle"`     // Facing cone half-width, radians
	CooldownTicks int     `yaml:"cooldown_ticks"` // Frames between swings
	BatchMin      int     `yaml:"batch_min"`      // Fewest bones one hit breaks
	BatchMax      int     `yaml:"batch_max"`      // Most bones one hit breaks
}

// DefaultCombat returns the default combat configuration.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		Range:         1.9,
		HalfAngle:     0.7,
		CooldownTicks: 5,
		BatchMin:      5,
		BatchMax:      9,
	}
}

// FractureConfig holds skeleton break-up tuning.
type FractureConfig struct {
	Threshold          float64 `yaml:"threshold"`            // Broken fraction that triggers the explosion
	Damping            float64 `yaml:"damping"`              // Velocity multiplier per frame
	Shrink             float64 `yaml:"shrink"`               // Thickness multiplier per frame
	MaxExplosionFrames int     `yaml:"max_explosion_frames"` // Frames before the body is cleared
	SpeedMin           float64 `yaml:"speed_min"`            // Bone launch speed band, units/s
	SpeedMax           float64 `yaml:"speed_max"`
}

// DefaultFracture returns the default fracture configuration.
func DefaultFracture() FractureConfig {
	return FractureConfig{
		Threshold:          0.2,
		Damping:            0.95,
		Shrink:             0.95,
		MaxExplosionFrames: 30,
		SpeedMin:           0.8,
		SpeedMax:           1.6,
	}
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds raycaster and painter settings.
type RenderConfig struct {
	NearPlane   float64 `yaml:"near_plane"`   // Camera-space cull depth
	Workers     int     `yaml:"workers"`      // Column workers, 0 = NumCPU
	Scale       int     `yaml:"scale"`        // Painter upscale factor for PNG frames
	MinimapCell int     `yaml:"minimap_cell"` // Minimap tile size in pixels, 0 hides it
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		NearPlane:   0.05,
		Scale:       2,
		MinimapCell: 4,
	}
}

// RenderFromEnv applies environment overrides to cfg.
func RenderFromEnv(cfg RenderConfig) RenderConfig {
	if w := getEnvInt("RAYCAST_WORKERS", -1); w >= 0 {
		cfg.Workers = w
	}
	if s := getEnvInt("FRAME_SCALE", 0); s > 0 {
		cfg.Scale = s
	}
	return cfg
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds the procedural soundtrack settings.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"` // Hz
	BPM        float64 `yaml:"bpm"`         // Tempo
	Bars       int     `yaml:"bars"`        // Bars per rendered loop
	Volume     float64 `yaml:"volume"`      // Master volume (0.0 to 1.0)
	Enabled    bool    `yaml:"enabled"`

	// MusicPath replaces the synthesized loop with an OGG Vorbis file for
	// local playback
	MusicPath string `yaml:"music_path"`
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		BPM:        128,
		Bars:       4,
		Volume:     0.3,
		Enabled:    true,
	}
}

// AudioFromEnv applies environment overrides to cfg.
func AudioFromEnv(cfg AudioConfig) AudioConfig {
	if v := getEnvFloat("MUSIC_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("MUSIC_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if v := os.Getenv("MUSIC_PATH"); v != "" {
		cfg.MusicPath = v
	}
	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int `yaml:"port"`
	BroadcastHz int `yaml:"broadcast_hz"` // Websocket snapshot rate

	// RequestsPerSec is the per-IP HTTP limit.
	RequestsPerSec float64  `yaml:"requests_per_sec"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// EventLogPath is where game events are appended. Empty keeps them in memory.
	EventLogPath string `yaml:"event_log_path"`

	// ControlToken, when set, is required as a bearer token on player
	// control endpoints.
	ControlToken string `yaml:"control_token"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		BroadcastHz:    10,
		RequestsPerSec: 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}
}

// ServerFromEnv applies environment overrides to cfg.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if hz := getEnvInt("BROADCAST_HZ", 0); hz > 0 {
		cfg.BroadcastHz = hz
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	if path := os.Getenv("EVENT_LOG_PATH"); path != "" {
		cfg.EventLogPath = path
	}
	if token := os.Getenv("CONTROL_TOKEN"); token != "" {
		cfg.ControlToken = token
	}
	return cfg
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig controls the localhost pprof and metrics listener.
type DebugConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddr    string `yaml:"listen_addr"`
	AllowExternal bool   `yaml:"allow_external"` // otherwise ListenAddr is forced to loopback
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugFromEnv applies environment overrides to cfg.
func DebugFromEnv(cfg DebugConfig) DebugConfig {
	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		cfg.AllowExternal = true
	}
	if user := os.Getenv("DEBUG_USER"); user != "" {
		cfg.BasicAuthUser = user
		cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Video    VideoConfig    `yaml:"video"`
	Level    LevelConfig    `yaml:"level"`
	Camera   CameraConfig   `yaml:"camera"`
	Movement MovementConfig `yaml:"movement"`
	Combat   CombatConfig   `yaml:"combat"`
	Fracture FractureConfig `yaml:"fracture"`
	Render   RenderConfig   `yaml:"render"`
	Audio    AudioConfig    `yaml:"audio"`
	Server   ServerConfig   `yaml:"server"`
	Debug    DebugConfig    `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Video:    DefaultVideo(),
		Level:    DefaultLevel(),
		Camera:   DefaultCamera(),
		Movement: DefaultMovement(),
		Combat:   DefaultCombat(),
		Fracture: DefaultFracture(),
		Render:   DefaultRender(),
		Audio:    DefaultAudio(),
		Server:   DefaultServer(),
		Debug:    DefaultDebug(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "open config %s", path)
		}
		defer f.Close()

		if err := Decode(f, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "config %s", path)
		}
	}

	cfg = FromEnv(cfg)
	return cfg, cfg.Validate()
}

// Decode overlays YAML from r onto cfg. Keys missing from the document keep
// their current values.
func Decode(r io.Reader, cfg *AppConfig) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, "decode yaml")
	}
	return nil
}

// FromEnv applies every environment override.
func FromEnv(cfg AppConfig) AppConfig {
	cfg.Video = VideoFromEnv(cfg.Video)
	cfg.Level = LevelFromEnv(cfg.Level)
	cfg.Render = RenderFromEnv(cfg.Render)
	cfg.Audio = AudioFromEnv(cfg.Audio)
	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.Debug = DebugFromEnv(cfg.Debug)
	return cfg
}

// Validate reports the first out-of-range setting.
func (c AppConfig) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Video.Width >= 1 && c.Video.Height >= 1, "video size must be at least 1x1"},
		{c.Video.FPS >= 1, "video fps must be positive"},
		{c.Level.MazeWidth >= 1 && c.Level.MazeHeight >= 1, "maze must be at least 1x1"},
		{c.Level.Skeletons >= 0 && c.Level.PlainEnemies >= 0, "enemy counts cannot be negative"},
		{c.Camera.FOVDegrees > 0 && c.Camera.FOVDegrees < 180, "fov must be in (0, 180) degrees"},
		{c.Movement.MoveSpeed > 0 && c.Movement.TurnSpeed > 0, "movement speeds must be positive"},
		{c.Combat.Range > 0, "combat range must be positive"},
		{c.Combat.HalfAngle > 0 && c.Combat.HalfAngle <= math.Pi, "combat half angle must be in (0, pi]"},
		{c.Combat.CooldownTicks >= 0, "cooldown cannot be negative"},
		{c.Combat.BatchMin >= 1 && c.Combat.BatchMin <= c.Combat.BatchMax, "batch range must satisfy 1 <= min <= max"},
		{c.Fracture.Threshold > 0 && c.Fracture.Threshold <= 1, "fracture threshold must be in (0, 1]"},
		{c.Fracture.Damping > 0 && c.Fracture.Damping <= 1, "damping must be in (0, 1]"},
		{c.Fracture.Shrink > 0 && c.Fracture.Shrink <= 1, "shrink must be in (0, 1]"},
		{c.Fracture.MaxExplosionFrames >= 0, "explosion frames cannot be negative"},
		{c.Fracture.SpeedMin >= 0 && c.Fracture.SpeedMin <= c.Fracture.SpeedMax, "bone speed band must satisfy 0 <= min <= max"},
		{c.Render.NearPlane > 0, "near plane must be positive"},
		{c.Render.Scale >= 1, "render scale must be at least 1"},
		{c.Audio.SampleRate > 0 && c.Audio.BPM > 0 && c.Audio.Bars > 0, "audio rate, tempo and bars must be positive"},
		{c.Server.Port > 0 && c.Server.Port < 65536, "server port out of range"},
		{c.Server.BroadcastHz > 0, "broadcast rate must be positive"},
	}

	for _, chk := range checks {
		if !chk.ok {
			return errors.Wrap(ErrInvalid, chk.msg)
		}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
