package artifact

import (
	"fmt"
	"sync"
	"time"
)

// idTimestampFormat matches spec.md §3: YYYYMMDD_HHMMSS[_NNN].
const idTimestampFormat = "20060102_150405"

// idGenerator produces monotonically ordered workflow IDs and resolves
// same-tick collisions with a numeric suffix, the way the teacher's
// key generator tracks already-issued sequence numbers per batch under
// a mutex instead of relying on global time-based uniqueness alone.
type idGenerator struct {
	mu      sync.Mutex
	counts  map[string]int
	nowFunc func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{
		counts:  make(map[string]int),
		nowFunc: time.Now,
	}
}

// next returns the next candidate ID for the current tick. A caller that
// finds the store already owns that ID (a cross-process collision the
// in-memory counter can't see) simply calls next again for a fresh candidate.
func (g *idGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.nowFunc().UTC().Format(idTimestampFormat)
	n := g.counts[base]
	g.counts[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%03d", base, n)
}

var defaultIDGenerator = newIDGenerator()

// GenerateWorkflowID returns a new candidate workflow ID. Collisions within
// one clock tick are resolved with a "_NNN" suffix (spec.md §3); the Store
// additionally guards against cross-process collisions at CreateWorkflow time.
func GenerateWorkflowID() string {
	return defaultIDGenerator.next()
}
