package ident

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// maxAttempts bounds collision retries before the generator gives up.
// For an 8-hex-digit space this is only reachable with a faulty
// random source.
const maxAttempts = 100

// ErrExhausted is returned when the generator cannot find an unused
// identifier after maxAttempts consecutive collisions.
var ErrExhausted = errors.New("identifier generation exhausted after 100 collisions (random source may be faulty)")

// Source supplies the raw randomness for identifier generation.
// Swappable so tests can drive collision and exhaustion paths
// deterministically.
type Source interface {
	Uint32() uint32
}

// CryptoSource draws uniformly from crypto/rand.
type CryptoSource struct{}

// Uint32 returns four random bytes as a big-endian uint32.
func (CryptoSource) Uint32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return binary.BigEndian.Uint32(buf[:])
}

// Generator produces fresh identifiers that do not collide with any
// identifier the caller has already seen.
type Generator struct {
	src Source
}

// NewGenerator creates a Generator backed by src. A nil src falls
// back to crypto/rand.
func NewGenerator(src Source) *Generator {
	if src == nil {
		src = CryptoSource{}
	}
	return &Generator{src: src}
}

// Fresh returns an identifier absent from seen and registers it
// there, so subsequent calls within the same batch cannot return the
// same value.
func (g *Generator) Fresh(seen map[ID]bool) (ID, error) {
	for i := 0; i < maxAttempts; i++ {
		id := ID(fmt.Sprintf("rq-%08x", g.src.Uint32()))
		if seen[id] {
			continue
		}
		seen[id] = true
		return id, nil
	}
	return "", ErrExhausted
}
