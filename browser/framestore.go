package browser

import (
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ByLCY/tessera/engine"
)

// DefaultFrameTTL is how long completed frames stay addressable by index.
const DefaultFrameTTL = time.Minute

// FrameStore keeps recently completed frames by index plus the latest one,
// which never expires. Indices only grow: a frame at or below the highest
// index ever stored is refused, also after Reset. Safe for concurrent use.
type FrameStore struct {
	cache *gocache.Cache

	mu     sync.RWMutex
	latest *engine.Frame
	high   uint64
	stored bool
}

// NewFrameStore returns a store whose entries expire after ttl.
func NewFrameStore(ttl time.Duration) *FrameStore {
	if ttl <= 0 {
		ttl = DefaultFrameTTL
	}
	return &FrameStore{cache: gocache.New(ttl, 2*ttl)}
}

func frameKey(index uint64) string { return strconv.FormatUint(index, 10) }

// Put records f and makes it the latest frame. It reports false and keeps
// nothing when f.Index was already used.
func (s *FrameStore) Put(f engine.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored && f.Index <= s.high {
		return false
	}
	s.high, s.stored = f.Index, true
	s.cache.SetDefault(frameKey(f.Index), f)
	s.latest = &f
	return true
}

// Get returns the frame with index if it has not expired.
func (s *FrameStore) Get(index uint64) (engine.Frame, bool) {
	v, ok := s.cache.Get(frameKey(index))
	if !ok {
		return engine.Frame{}, false
	}
	f, ok := v.(engine.Frame)
	return f, ok
}

// Latest returns the most recently stored frame.
func (s *FrameStore) Latest() (engine.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return engine.Frame{}, false
	}
	return *s.latest, true
}

// Reset drops every frame, used when a new document replaces the old one.
// The index high-water mark survives.
func (s *FrameStore) Reset() {
	s.cache.Flush()
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

// Len counts unexpired frames.
func (s *FrameStore) Len() int { return s.cache.ItemCount() }
