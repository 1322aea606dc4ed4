// Package frame defines the unit of work exchanged between pipeline
// stages. A frame is created once by the stage that owns a frame log,
// never mutated, and read by the downstream stage.
package frame

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Frame is one appended record in a stage's frame log.
type Frame struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds a frame around an already-serialized payload. The origin
// stage mints a fresh ID; downstream stages reuse the originating fetch
// ID so one identifier tracks a unit of work through every log.
func New(id, createdAt string, payload json.RawMessage) Frame {
	return Frame{
		ID:        id,
		CreatedAt: createdAt,
		Payload:   payload,
	}
}

// NewID generates a frame identifier.
// Format: ULID (e.g. 01JB6X8Y2K9FQR4T3VWHGP5M2C), unique across restarts.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
