// Package id generates ULID-based identifiers.
//
// ULIDs are lexicographically sortable by creation time, so request and
// replay ids in logs line up with the order things happened. Each kind of
// id carries a short prefix (req_*, rpl_*) to make logs readable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies a host API request
type RequestID string

// ReplayID identifies one replay attempt
type ReplayID string

const (
	RequestPrefix = "req"
	ReplayPrefix  = "rpl"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Monotonic entropy keeps ids generated within one millisecond ordered.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewReplayID generates a new replay ID
func NewReplayID() ReplayID {
	return ReplayID(Default().GenerateWithPrefix(ReplayPrefix))
}

func (id RequestID) String() string { return string(id) }
func (id ReplayID) String() string  { return string(id) }

// Parse parses a ULID, with or without a prefix
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.ParseStrict(id)
}

// IsValid checks if id is a valid, optionally prefixed, ULID
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

