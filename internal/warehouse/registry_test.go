package warehouse

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistryResolveIdempotent(t *testing.T) {
	r := NewKeyRegistry()

	a, err := r.Resolve(EntityApplicant, "A001")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a != 1 {
		t.Fatalf("first allocation should be 1, got %d", a)
	}
	b, _ := r.Resolve(EntityApplicant, "A001")
	if a != b {
		t.Fatalf("same business key resolved to %d then %d", a, b)
	}
}

func TestRegistryInjectivePerEntity(t *testing.T) {
	r := NewKeyRegistry()

	seen := map[int64]string{}
	for _, bk := range []string{"A001", "A002", "A003", "A004"} {
		sk, err := r.Resolve(EntityApplicant, bk)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if prev, dup := seen[sk]; dup {
			t.Fatalf("surrogate %d issued for both %q and %q", sk, prev, bk)
		}
		seen[sk] = bk
	}

	// Entity types are independent sequences; the same business key gets
	// separate keys per type.
	p, _ := r.Resolve(EntityPosting, "A001")
	if p != 1 {
		t.Fatalf("posting sequence should start at 1, got %d", p)
	}
}

func TestRegistryMissingBusinessKey(t *testing.T) {
	r := NewKeyRegistry()
	if _, err := r.Resolve(EntityCompany, "   "); !errors.Is(err, ErrMissingBusinessKey) {
		t.Fatalf("expected ErrMissingBusinessKey, got %v", err)
	}
	if _, ok := r.Lookup(EntityCompany, ""); ok {
		t.Fatalf("blank key must not resolve")
	}
}

func TestRegistrySeedAndAdvance(t *testing.T) {
	r := NewKeyRegistry()
	r.Seed(EntityCareer, map[string]int64{"DERECHO": 7, "MEDICINA": 3})
	r.Advance(EntityCareer, 41)

	if sk, ok := r.Lookup(EntityCareer, "DERECHO"); !ok || sk != 7 {
		t.Fatalf("seeded key lost: %d %v", sk, ok)
	}
	sk, err := r.Resolve(EntityCareer, "ENFERMERIA")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sk != 41 {
		t.Fatalf("fresh key should continue from the advanced floor, got %d", sk)
	}

	fresh := r.FreshAllocations()
	if len(fresh) != 1 || fresh[0].BusinessKey != "ENFERMERIA" || fresh[0].SurrogateKey != 41 {
		t.Fatalf("seeded keys must not appear as fresh: %+v", fresh)
	}
}

func TestRegistryLookupNeverAllocates(t *testing.T) {
	r := NewKeyRegistry()
	if _, ok := r.Lookup(EntitySkill, "EXCEL"); ok {
		t.Fatalf("lookup of unseen key must fail")
	}
	if n := len(r.FreshAllocations()); n != 0 {
		t.Fatalf("lookup allocated %d keys", n)
	}
}

func TestRegistryFreshAllocationsDeterministic(t *testing.T) {
	r := NewKeyRegistry()
	for _, bk := range []string{"C03", "C01", "C02"} {
		if _, err := r.Resolve(EntityCompany, bk); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	fresh := r.FreshAllocations()
	if len(fresh) != 3 {
		t.Fatalf("expected 3 fresh mappings, got %d", len(fresh))
	}
	for i := 1; i < len(fresh); i++ {
		if fresh[i-1].BusinessKey >= fresh[i].BusinessKey {
			t.Fatalf("fresh mappings not sorted: %+v", fresh)
		}
	}
}

func TestRegistryConcurrentResolve(t *testing.T) {
	r := NewKeyRegistry()

	const goroutines = 16
	results := make([]int64, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			sk, err := r.Resolve(EntityLocation, "150101")
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			results[i] = sk
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatalf("racing resolves got different keys: %v", results)
		}
	}
}
