// errors.go defines the mutation error taxonomy. Validation and unsupported-
// entity errors reject the whole batch before any write; lookup misses skip a
// single record and let the rest of the batch proceed.
package mutation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPayload marks a malformed bundle row: neither the by-id nor
	// the natural-key shape is present. The whole batch is rejected.
	ErrInvalidPayload = errors.New("invalid mutation payload")

	// ErrLookupMiss marks an unresolvable natural-key reference on one
	// create. Partial-failure semantics: only that record is skipped.
	ErrLookupMiss = errors.New("lookup reference not found")

	// ErrUnsupportedEntity marks dispatch to an unregistered entity name.
	// This is a programming or configuration error and is never retried.
	ErrUnsupportedEntity = errors.New("unsupported entity")
)

func isLookupMiss(err error) bool {
	return errors.Is(err, ErrLookupMiss)
}

// UnsupportedEntityError builds the dispatch error for an unknown entity,
// enumerating the registered names. The enumeration is part of the API
// contract so callers can self-diagnose typos.
func UnsupportedEntityError(name string, known []string) error {
	return fmt.Errorf("%w: %q (valid entities: %s)",
		ErrUnsupportedEntity, name, strings.Join(known, ", "))
}
