package assoc

import "sync"

// key identifies an association by its (user, account, partition)
// tuple, the lookup path used at submit time before assoc_id is known.
type key struct {
	user, account, partition string
}

// Cache is the association/QoS cache (C8), refreshed out-of-band per
// §5 "the association cache is refreshed out-of-band; its mutex is
// separate and acquired innermost" — it is never one of the four named
// locks in §4.4.
type Cache struct {
	mu sync.RWMutex

	byID  map[uint32]*Record
	byKey map[key]*Record
}

func NewCache() *Cache {
	return &Cache{
		byID:  make(map[uint32]*Record),
		byKey: make(map[key]*Record),
	}
}

// Put inserts or replaces an association record.
func (c *Cache) Put(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[rec.ID] = rec
	c.byKey[key{rec.User, rec.Account, rec.Partition}] = rec
}

// Lookup resolves by (user, account, partition), the path a submit RPC
// takes before a job record exists.
func (c *Cache) Lookup(user, account, partition string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byKey[key{user, account, partition}]
	return rec, ok
}

// Get resolves by assoc_id, the path a live job record takes once
// assoc_ptr has been bound (§9 "express these as indices ... into the
// owning tables rather than raw pointers").
func (c *Cache) Get(id uint32) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byID[id]
	return rec, ok
}

// Delete removes an association; any job whose assoc_ptr resolved to it
// keeps the last-known id but its handle becomes invalid (§9) — callers
// must re-check Get's ok before trusting a cached pointer.
func (c *Cache) Delete(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	delete(c.byKey, key{rec.User, rec.Account, rec.Partition})
}
