package identity

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	dErrors "memoledger/pkg/domain-errors"
)

// MaxIdentifierLength bounds external identifiers. Longer input is rejected,
// never truncated, so two long identifiers cannot collide on a shared prefix.
const MaxIdentifierLength = 64

var (
	ErrIdentifierTooLong = errors.New("identifier too long")
	ErrEmptyIdentifier   = errors.New("identifier is empty")
	ErrUnknownNamespace  = errors.New("unknown namespace")
)

// ValidateIdentifier checks the length bound shared by every external identifier.
func ValidateIdentifier(externalID string) error {
	if externalID == "" {
		return dErrors.Wrap(ErrEmptyIdentifier, dErrors.CodeInvalidInput, "identifier is required")
	}
	if len(externalID) > MaxIdentifierLength {
		return dErrors.Wrap(ErrIdentifierTooLong, dErrors.CodeInvalidInput,
			fmt.Sprintf("identifier exceeds %d bytes", MaxIdentifierLength))
	}
	return nil
}

// Derive validates externalID and derives its key under ns.
func Derive(ns Namespace, externalID string) (Key, error) {
	if !ns.Valid() {
		return Key{}, dErrors.Wrap(ErrUnknownNamespace, dErrors.CodeInvalidInput,
			fmt.Sprintf("unknown namespace %q", ns))
	}
	if err := ValidateIdentifier(externalID); err != nil {
		return Key{}, err
	}
	return DeriveRaw(ns, []byte(externalID)), nil
}

type cacheKey struct {
	ns Namespace
	id string
}

// Registry resolves identifiers to keys, memoizing recent derivations.
// A Registry with no cache derives on every call; results are identical either way.
type Registry struct {
	cache *lru.Cache[cacheKey, Key]
}

// NewRegistry creates a Registry caching up to size derivations. size <= 0 disables caching.
func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		return &Registry{}, nil
	}
	c, err := lru.New[cacheKey, Key](size)
	if err != nil {
		return nil, fmt.Errorf("create identity cache: %w", err)
	}
	return &Registry{cache: c}, nil
}

// DeriveAccountKey returns the key for externalID under ns.
func (r *Registry) DeriveAccountKey(ns Namespace, externalID string) (Key, error) {
	ck := cacheKey{ns: ns, id: externalID}
	if r.cache != nil {
		if k, ok := r.cache.Get(ck); ok {
			return k, nil
		}
	}
	k, err := Derive(ns, externalID)
	if err != nil {
		return Key{}, err
	}
	if r.cache != nil {
		r.cache.Add(ck, k)
	}
	return k, nil
}

// UserKey is shorthand for the user-namespace key of externalID.
func (r *Registry) UserKey(externalID string) (Key, error) {
	return r.DeriveAccountKey(NamespaceUser, externalID)
}

// Len returns the number of cached derivations.
func (r *Registry) Len() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}
