package warehouse

import (
	"sort"
	"strings"
	"sync"
)

// KeyRegistry assigns surrogate keys per (entity type, business key). The
// mapping is injective per entity type and allocation counters only move
// forward: a key is never reused, even after its dimension row is deleted.
//
// One registry instance serves both stars, so a shared-dimension business
// key (a date, a ubigeo) resolves to the same surrogate key no matter which
// star asks first. All methods are safe for concurrent use; allocation is
// serialized so two racing Resolve calls for one key get one answer.
type KeyRegistry struct {
	mu    sync.Mutex
	next  map[EntityType]int64
	keys  map[EntityType]map[string]int64
	fresh map[EntityType]map[string]int64
}

func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{
		next:  map[EntityType]int64{},
		keys:  map[EntityType]map[string]int64{},
		fresh: map[EntityType]map[string]int64{},
	}
}

// Seed installs mappings persisted by earlier runs. The allocation counter
// advances past the highest seeded key so new allocations never collide.
func (r *KeyRegistry) Seed(entity EntityType, persisted map[string]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.entityKeys(entity)
	for bk, sk := range persisted {
		m[bk] = sk
		if sk >= r.next[entity] {
			r.next[entity] = sk + 1
		}
	}
}

// Advance raises the allocation counter to at least floor. Seeding loads
// only the business keys a run actually references, so the counter floor
// must additionally be set from the store's maximum to keep fresh
// allocations clear of every previously issued key.
func (r *KeyRegistry) Advance(entity EntityType, floor int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if floor > r.next[entity] {
		r.next[entity] = floor
	}
}

// Resolve returns the surrogate key for a business key, allocating the next
// key in sequence on first sight.
func (r *KeyRegistry) Resolve(entity EntityType, businessKey string) (int64, error) {
	businessKey = strings.TrimSpace(businessKey)
	if businessKey == "" {
		return 0, ErrMissingBusinessKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.entityKeys(entity)
	if sk, ok := m[businessKey]; ok {
		return sk, nil
	}

	if r.next[entity] == 0 {
		r.next[entity] = 1
	}
	sk := r.next[entity]
	r.next[entity]++
	m[businessKey] = sk

	if r.fresh[entity] == nil {
		r.fresh[entity] = map[string]int64{}
	}
	r.fresh[entity][businessKey] = sk

	return sk, nil
}

// Lookup resolves without allocating. The fact assembler uses it so a fact
// row can never mint a dimension key.
func (r *KeyRegistry) Lookup(entity EntityType, businessKey string) (int64, bool) {
	businessKey = strings.TrimSpace(businessKey)
	if businessKey == "" {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sk, ok := r.entityKeys(entity)[businessKey]
	return sk, ok
}

// FreshAllocations returns the keys allocated since Seed, in deterministic
// order, for the loader to persist inside the batch transaction.
func (r *KeyRegistry) FreshAllocations() []KeyMapping {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []KeyMapping{}
	entities := make([]EntityType, 0, len(r.fresh))
	for e := range r.fresh {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	for _, e := range entities {
		bks := make([]string, 0, len(r.fresh[e]))
		for bk := range r.fresh[e] {
			bks = append(bks, bk)
		}
		sort.Strings(bks)
		for _, bk := range bks {
			out = append(out, KeyMapping{Entity: e, BusinessKey: bk, SurrogateKey: r.fresh[e][bk]})
		}
	}
	return out
}

// KeyMapping is one persisted (entity, business key, surrogate key) triple.
type KeyMapping struct {
	Entity       EntityType
	BusinessKey  string
	SurrogateKey int64
}

// entityKeys must be called with the mutex held.
func (r *KeyRegistry) entityKeys(entity EntityType) map[string]int64 {
	m, ok := r.keys[entity]
	if !ok {
		m = map[string]int64{}
		r.keys[entity] = m
	}
	return m
}
