package httpx

import "sync/atomic"

// KeyRing rotates through an ordered list of API credentials. The index
// advances monotonically and is shared across concurrent callers; any
// valid key is equally usable, so interleaved rotation is harmless.
type KeyRing struct {
	keys []string
	idx  atomic.Uint64
}

// NewKeyRing builds a ring over the configured keys. An empty key list
// yields a ring whose Current returns "".
func NewKeyRing(keys []string) *KeyRing {
	return &KeyRing{keys: keys}
}

// Len returns the number of configured keys.
func (r *KeyRing) Len() int {
	return len(r.keys)
}

// Current returns the key at the current rotation position.
func (r *KeyRing) Current() string {
	if len(r.keys) == 0 {
		return ""
	}
	return r.keys[r.idx.Load()%uint64(len(r.keys))]
}

// Advance moves to the next key and returns it. Used after a 401.
func (r *KeyRing) Advance() string {
	if len(r.keys) == 0 {
		return ""
	}
	return r.keys[r.idx.Add(1)%uint64(len(r.keys))]
}
