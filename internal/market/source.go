package market

import (
	"math/rand"
	"time"
)

// Source supplies uniform draws in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded generator. A zero seed is replaced with the wall clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
