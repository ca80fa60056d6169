package service

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Picker chooses an index in [0, n). It must be safe for concurrent use when
// shared by a Generator.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

// IntN uses the runtime-seeded global source, which is goroutine safe.
func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// LockedPicker serializes access to a seeded generator so runs can be
// reproduced while still being shared between requests.
type LockedPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededPicker returns a deterministic Picker.
func NewSeededPicker(seed uint64) *LockedPicker {
	return &LockedPicker{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *LockedPicker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.IntN(n)
}

// newMemeID returns a random 128-bit identifier as 32 hex digits.
func newMemeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
