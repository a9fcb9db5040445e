package warehouse

import (
	"errors"
	"fmt"
)

// ErrMissingBusinessKey is returned by the registry when asked to resolve an
// empty business key.
var ErrMissingBusinessKey = errors.New("missing business key")

// UnresolvedReferenceError marks a fact row whose required dimension key has
// no registry entry. The row is rejected; a null or sentinel foreign key is
// never substituted.
type UnresolvedReferenceError struct {
	Fact        string
	Entity      EntityType
	BusinessKey string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference: fact=%s entity=%s business_key=%q", e.Fact, e.Entity, e.BusinessKey)
}
