package handler

import (
	"strings"

	"memoledger/internal/ledger/models"
	"memoledger/pkg/validation"
)

// LockRequest converts personal tokens into reward tokens.
type LockRequest struct {
	Amount uint64 `json:"amount" validate:"gt=0"`
}

func (r *LockRequest) Validate() error { return validation.Validate(r) }

// CreateConnectionRequest opens a connection between two registered
// identities. The caller is recorded as the beneficiary.
type CreateConnectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required,notblank,max=64"`
	IdentityA    string `json:"identity_a" validate:"required,notblank,max=64"`
	IdentityB    string `json:"identity_b" validate:"required,notblank,max=64"`
	CommitA      string `json:"commit_a" validate:"required,len=64,hexadecimal"`
	CommitB      string `json:"commit_b" validate:"required,len=64,hexadecimal"`

	commitA models.Commitment
	commitB models.Commitment
}

func (r *CreateConnectionRequest) Sanitize() {
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
	r.IdentityA = strings.TrimSpace(r.IdentityA)
	r.IdentityB = strings.TrimSpace(r.IdentityB)
	r.CommitA = strings.TrimSpace(r.CommitA)
	r.CommitB = strings.TrimSpace(r.CommitB)
}

func (r *CreateConnectionRequest) Normalize() {
	r.CommitA = strings.ToLower(r.CommitA)
	r.CommitB = strings.ToLower(r.CommitB)
}

func (r *CreateConnectionRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	var err error
	if r.commitA, err = models.ParseCommitment(r.CommitA); err != nil {
		return err
	}
	r.commitB, err = models.ParseCommitment(r.CommitB)
	return err
}

// UnlockRequest reveals the counterpart's secret. Length is checked by the
// ledger so the error kind is the same for every transport.
type UnlockRequest struct {
	Secret string `json:"secret"`
}
