package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idEntropyMu sync.Mutex
	idEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a ULID for player, level, ledger and security-event rows.
// Monotonic entropy keeps ids sortable by creation time.
func NewID() string {
	idEntropyMu.Lock()
	defer idEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}
