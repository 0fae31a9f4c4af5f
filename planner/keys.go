package planner

import (
	crand "crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// KeyGenerator produces opaque primary-key values for records that arrive
// without one. Implementations must be safe for concurrent use.
type KeyGenerator interface {
	NewKey() (string, error)
}

// KeyGeneratorFunc adapts a function to KeyGenerator.
type KeyGeneratorFunc func() (string, error)

// NewKey calls f.
func (f KeyGeneratorFunc) NewKey() (string, error) { return f() }

// UUIDGenerator generates random (version 4) UUID strings.
type UUIDGenerator struct{}

// NewKey implements KeyGenerator.
func (UUIDGenerator) NewKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ULIDGenerator generates lexically sortable ULID strings. Keys generated
// within the same millisecond are monotonically increasing.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator returns a ULIDGenerator drawing entropy from crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return NewULIDGeneratorWithEntropy(crand.Reader)
}

// NewULIDGeneratorWithEntropy returns a ULIDGenerator reading the random
// component of its keys from r.
func NewULIDGeneratorWithEntropy(r io.Reader) *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(r, 0)}
}

// NewKey implements KeyGenerator.
func (g *ULIDGenerator) NewKey() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// KeyGeneratorFor returns the generator for a strategy name: "uuid" or "ulid".
// It returns false for unknown names.
func KeyGeneratorFor(strategy string) (KeyGenerator, bool) {
	switch strategy {
	case "", "uuid":
		return UUIDGenerator{}, true
	case "ulid":
		return NewULIDGenerator(), true
	default:
		return nil, false
	}
}
