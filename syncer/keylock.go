package syncer

import "sync"

// keySet is a set of in-flight keys. Acquire is atomic, so two goroutines
// racing on the same key see exactly one winner.
type keySet struct {
	keys sync.Map
}

// acquire claims the key. It reports false when the key is already held.
func (s *keySet) acquire(key string) bool {
	_, loaded := s.keys.LoadOrStore(key, struct{}{})
	return !loaded
}

// release frees the key for the next acquirer.
func (s *keySet) release(key string) {
	s.keys.Delete(key)
}
