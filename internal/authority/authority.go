// Package authority lets the ledger itself authorize issuance from the mints
// it owns. No private key is held: the right to mint from mint M is a proof
// derived from the program seed and M, and the mint records only the public
// derivation of that proof.
package authority

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"memoledger/internal/identity"
	"memoledger/internal/tokens"
)

const mintAuthorityTag = "mint_authority"

// MinSeedLength is the shortest seed NewProgram accepts.
const MinSeedLength = 16

var ErrSeedTooShort = errors.New("program seed too short")

// Capability authorizes minting from exactly one mint. Its fields are
// unexported so only a Program can produce one that verifies.
type Capability struct {
	mint  identity.Key
	proof [identity.KeySize]byte
}

// MintID implements tokens.Grant.
func (c Capability) MintID() identity.Key { return c.mint }

// Proof implements tokens.Grant.
func (c Capability) Proof() [identity.KeySize]byte { return c.proof }

// Program is the ledger's issuing authority.
type Program struct {
	seed [identity.KeySize]byte
}

// NewProgram derives a Program from seed.
func NewProgram(seed []byte) (*Program, error) {
	if len(seed) < MinSeedLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSeedTooShort, MinSeedLength)
	}
	return &Program{seed: blake2b.Sum256(seed)}, nil
}

func (p *Program) capability(mint identity.Key) Capability {
	h, err := blake2b.New256(p.seed[:])
	if err != nil {
		panic(fmt.Sprintf("authority: keyed hash: %v", err))
	}
	h.Write([]byte(mintAuthorityTag))
	h.Write(mint[:])

	c := Capability{mint: mint}
	copy(c.proof[:], h.Sum(nil))
	return c
}

// AuthorityKey is the public authority recorded on mints this program owns.
func (p *Program) AuthorityKey(mint identity.Key) identity.Key {
	proof := p.capability(mint).proof
	return identity.DeriveRaw(identity.NamespaceAuthority, proof[:])
}

// CreateMint installs mint under this program's authority.
func (p *Program) CreateMint(ctx context.Context, ledger *tokens.Ledger, mint identity.Key) error {
	return ledger.CreateMint(ctx, mint, p.AuthorityKey(mint))
}

// MintAs issues units whole tokens of mint to owner, scaling at this boundary.
// It returns the base-unit amount issued.
func (p *Program) MintAs(ctx context.Context, ledger *tokens.Ledger, mint, owner identity.Key, units uint64) (tokens.Amount, error) {
	amount, err := tokens.Units(units)
	if err != nil {
		return 0, err
	}
	if err := ledger.Mint(ctx, p.capability(mint), owner, amount); err != nil {
		return 0, err
	}
	return amount, nil
}
