// Package sessionid implements the session-identity registry (SessionIds /
// SessionIdStrategy in Artio's terms): a small persistent mapping from a
// logical key to a stable 64-bit id. It serves two callers: the FIX session
// manager, keyed by (sender, target) composite keys so a reconnecting
// counterparty gets the same session id back (only the id is stored:
// sequence numbers are not persisted, and every new Session starts them at
// 1), and the Raft
// cluster layer, keyed by (node_id, term) so a newly-elected leader's
// leader_session_id is stable and persisted rather than reinvented on every
// restart.
package sessionid

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/i-melnichenko/consensus-lab/internal/storage"
)

// Key identifies an entry in the registry. Composite keys (FIX SessionKey)
// and synthetic keys (Raft node/term) both flatten to this string form.
type Key string

// FIXSessionKey builds the registry key for a FIX counterparty pair.
func FIXSessionKey(senderCompID, targetCompID string) Key {
	return Key(fmt.Sprintf("fix:%s:%s", senderCompID, targetCompID))
}

// LeaderEpochKey builds the registry key for a Raft leadership epoch.
func LeaderEpochKey(nodeID string, term int64) Key {
	return Key(fmt.Sprintf("raft:%s:%d", nodeID, term))
}

// Registry is the persistent SessionIds store. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	path     string
	byKey    map[Key]int64
	released map[int64]bool
	nextID   int64
}

type onDiskState struct {
	ByKey    map[Key]int64  `json:"by_key"`
	Released map[int64]bool `json:"released"`
	NextID   int64          `json:"next_id"`
}

// Open loads (or initializes) a registry persisted under dataDir.
func Open(dataDir string) (*Registry, error) {
	r := &Registry{
		path:     filepath.Join(dataDir, "session_registry.json"),
		byKey:    make(map[Key]int64),
		released: make(map[int64]bool),
		nextID:   1,
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("sessionid: open registry: %w", err)
	}
	return r, nil
}

// LookupOrAllocate returns the existing session id for key, or allocates and
// persists a new one. Allocation is monotonic: ids are never reused within a
// process lifetime, even across Release.
func (r *Registry) LookupOrAllocate(key Key) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return id, nil
	}

	id := r.nextID
	r.nextID++
	r.byKey[key] = id
	if err := r.saveLocked(); err != nil {
		// Roll back the in-memory allocation so a failed persist doesn't
		// leave the registry inconsistent with what's on disk.
		delete(r.byKey, key)
		r.nextID--
		return 0, fmt.Errorf("sessionid: allocate %s: %w", key, err)
	}
	return id, nil
}

// Release marks sessionID as released. Released ids are tracked so they are
// never handed out again, but the key->id mapping is left intact: a
// reconnecting counterparty with the same key still gets the same id back.
func (r *Registry) Release(sessionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released[sessionID] {
		return nil
	}
	r.released[sessionID] = true
	if err := r.saveLocked(); err != nil {
		delete(r.released, sessionID)
		return fmt.Errorf("sessionid: release %d: %w", sessionID, err)
	}
	return nil
}

// IsReleased reports whether sessionID has been released.
func (r *Registry) IsReleased(sessionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released[sessionID]
}

func (r *Registry) saveLocked() error {
	return storage.WriteJSONAtomically(r.path, onDiskState{
		ByKey:    r.byKey,
		Released: r.released,
		NextID:   r.nextID,
	})
}

func (r *Registry) load() error {
	state, err := loadOnDiskState(r.path)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	if state.ByKey != nil {
		r.byKey = state.ByKey
	}
	if state.Released != nil {
		r.released = state.Released
	}
	if state.NextID > r.nextID {
		r.nextID = state.NextID
	}
	return nil
}
