package world

import "time"

// Block change actions. No other value is accepted anywhere in the system.
const (
	ActionPlace  = "place"
	ActionRemove = "remove"
)

// BlockChange is one mutation event in a world's change log. The block type is
// free-form: block content is defined by game data, not by this layer.
type BlockChange struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	Type   string `json:"type"`
	Action string `json:"action"`
}

// World is a persisted game-world record: an immutable generation seed plus the
// ordered, append-only log of block changes applied since creation. Insertion
// order of Changes is the replay order and must survive storage exactly.
type World struct {
	ID          int64         `json:"id"`
	Seed        string        `json:"seed"`
	Changes     []BlockChange `json:"changes"`
	LastUpdated time.Time     `json:"last_updated"`
}
