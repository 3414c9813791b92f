package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "memoledger/pkg/domain-errors"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	r, err := NewRegistry(16)
	s.Require().NoError(err)
	s.registry = r
}

func (s *RegistrySuite) TestDeterministic() {
	a, err := s.registry.DeriveAccountKey(NamespaceUser, "alice")
	s.Require().NoError(err)
	b, err := Derive(NamespaceUser, "alice")
	s.Require().NoError(err)

	s.Equal(a, b)
	s.False(a.IsZero())
}

func (s *RegistrySuite) TestNamespacesSeparateKeys() {
	user, err := s.registry.DeriveAccountKey(NamespaceUser, "alice")
	s.Require().NoError(err)
	mint, err := s.registry.DeriveAccountKey(NamespacePersonalMint, "alice")
	s.Require().NoError(err)

	s.NotEqual(user, mint)
}

func (s *RegistrySuite) TestDistinctIdentifiers() {
	seen := make(map[Key]string)
	for _, id := range []string{"alice", "bob", "alice ", "Alice", strings.Repeat("a", 64), strings.Repeat("a", 63)} {
		k, err := s.registry.UserKey(id)
		s.Require().NoError(err)
		prev, dup := seen[k]
		s.False(dup, "collision between %q and %q", prev, id)
		seen[k] = id
	}
}

func (s *RegistrySuite) TestLengthBound() {
	s.Run("64 bytes accepted", func() {
		_, err := s.registry.UserKey(strings.Repeat("x", MaxIdentifierLength))
		s.NoError(err)
	})

	s.Run("65 bytes rejected", func() {
		_, err := s.registry.UserKey(strings.Repeat("x", MaxIdentifierLength+1))
		s.Require().Error(err)
		s.True(errors.Is(err, ErrIdentifierTooLong))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("multi-byte runes count as bytes", func() {
		_, err := s.registry.UserKey(strings.Repeat("é", 33))
		s.ErrorIs(err, ErrIdentifierTooLong)
	})

	s.Run("empty rejected", func() {
		_, err := s.registry.UserKey("")
		s.ErrorIs(err, ErrEmptyIdentifier)
	})
}

func (s *RegistrySuite) TestUnknownNamespace() {
	_, err := s.registry.DeriveAccountKey(Namespace("wallet"), "alice")
	s.ErrorIs(err, ErrUnknownNamespace)
}

func (s *RegistrySuite) TestCachePopulates() {
	_, err := s.registry.UserKey("carol")
	s.Require().NoError(err)
	_, err = s.registry.UserKey("carol")
	s.Require().NoError(err)
	s.Equal(1, s.registry.Len())

	_, _ = s.registry.UserKey(strings.Repeat("x", 65))
	s.Equal(1, s.registry.Len(), "failed derivations are not cached")
}

func (s *RegistrySuite) TestUncachedRegistry() {
	r, err := NewRegistry(0)
	s.Require().NoError(err)
	k, err := r.UserKey("alice")
	s.Require().NoError(err)
	want, _ := Derive(NamespaceUser, "alice")
	s.Equal(want, k)
	s.Zero(r.Len())
}
