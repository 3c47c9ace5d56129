package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown    EventType = iota
	EventTypeLevelStart           // Level generated, carries the seed
	EventTypeAttack               // Swing fired, hit or miss
	EventTypeFracture             // Bones broken on a skeleton
	EventTypeKill                 // Enemy lost its last core bone
	EventTypeExplode              // Body crossed the fracture threshold
	EventTypeRemoved              // Explosion finished, bones cleared
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Frame this occurred in
	EntityID  string    `json:"entityId"`  // Source entity (for rate limiting)
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeLevelStart:
		return "level_start"
	case EventTypeAttack:
		return "attack"
	case EventTypeFracture:
		return "fracture"
	case EventTypeKill:
		return "kill"
	case EventTypeExplode:
		return "explode"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// LevelStartPayload records what is needed to rebuild a level
type LevelStartPayload struct {
	Seed       int64   `json:"seed"`
	MazeWidth  int     `json:"mazeWidth"`
	MazeHeight int     `json:"mazeHeight"`
	Enemies    int     `json:"enemies"`
	SpawnX     float64 `json:"spawnX"`
	SpawnY     float64 `json:"spawnY"`
}

// AttackPayload contains swing details
type AttackPayload struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	DirX     float64 `json:"dirX"`
	DirY     float64 `json:"dirY"`
	Hit      bool    `json:"hit"`
	TargetID int     `json:"targetId,omitempty"`
	Distance float64 `json:"distance,omitempty"`
}

// FracturePayload contains the outcome of one fracture batch
type FracturePayload struct {
	EnemyID     int `json:"enemyId"`
	BonesBroken int `json:"bonesBroken"`
	TotalBroken int `json:"totalBroken"`
	TotalBones  int `json:"totalBones"`
}

// EnemyPayload identifies the enemy a state change happened to
type EnemyPayload struct {
	EnemyID int     `json:"enemyId"`
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, entityID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		EntityID:  entityID,
		Payload:   EncodePayload(payload),
	}
}
