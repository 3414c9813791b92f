package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"memoledger/internal/identity"
)

// Records persist in a fixed-width binary layout: identifiers as a length byte
// plus a 64-byte buffer, keys and hashes as 32 bytes, counters and unix-second
// timestamps as big-endian 64-bit integers, flags as one byte.

const (
	recordVersion byte = 1
	idFieldSize        = 1 + identity.MaxIdentifierLength

	AccountRecordSize    = 1 + idFieldSize + 2*identity.KeySize + 7*8
	ConnectionRecordSize = 1 + idFieldSize + identity.KeySize + 3*idFieldSize + 2*32 + 2 + 2*8
	GlobalRecordSize     = 1 + 2*identity.KeySize + idFieldSize + 3*8
)

var ErrCorruptRecord = errors.New("corrupt record")

type encoder struct {
	buf []byte
	err error
}

func newEncoder(size int) *encoder {
	e := &encoder{buf: make([]byte, 0, size)}
	e.buf = append(e.buf, recordVersion)
	return e
}

func (e *encoder) id(s string) {
	if len(s) > identity.MaxIdentifierLength {
		e.err = fmt.Errorf("identifier %d bytes exceeds field width", len(s))
		return
	}
	var field [idFieldSize]byte
	field[0] = byte(len(s))
	copy(field[1:], s)
	e.buf = append(e.buf, field[:]...)
}

func (e *encoder) bytes32(b [32]byte) { e.buf = append(e.buf, b[:]...) }
func (e *encoder) u64(v uint64)       { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }
func (e *encoder) time(t time.Time)   { e.u64(uint64(t.Unix())) }

func (e *encoder) flag(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(b []byte, size int) *decoder {
	d := &decoder{buf: b}
	if len(b) != size {
		d.err = fmt.Errorf("%w: length %d, want %d", ErrCorruptRecord, len(b), size)
		return d
	}
	if b[0] != recordVersion {
		d.err = fmt.Errorf("%w: version %d", ErrCorruptRecord, b[0])
		return d
	}
	d.off = 1
	return d
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) id() string {
	field := d.take(idFieldSize)
	if field == nil {
		return ""
	}
	n := int(field[0])
	if n > identity.MaxIdentifierLength {
		d.err = fmt.Errorf("%w: identifier length %d", ErrCorruptRecord, n)
		return ""
	}
	return string(field[1 : 1+n])
}

func (d *decoder) bytes32() [32]byte {
	var out [32]byte
	copy(out[:], d.take(32))
	return out
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) time() time.Time { return time.Unix(int64(d.u64()), 0).UTC() }

func (d *decoder) flag() bool {
	b := d.take(1)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	}
	d.err = fmt.Errorf("%w: flag byte %d", ErrCorruptRecord, b[0])
	return false
}

// MarshalBinary encodes the account in its fixed-width layout.
func (a *UserAccount) MarshalBinary() ([]byte, error) {
	e := newEncoder(AccountRecordSize)
	e.id(a.ExternalID)
	e.bytes32(a.Key)
	e.bytes32(a.PersonalMint)
	e.time(a.LastMintAt)
	e.u64(a.DailyMinted)
	e.u64(a.TotalMinted)
	e.u64(a.TotalLocked)
	e.u64(a.TotalRewardEarned)
	e.u64(a.ConnectionsCount)
	e.time(a.CreatedAt)
	return e.buf, e.err
}

// UnmarshalBinary decodes an account.
func (a *UserAccount) UnmarshalBinary(b []byte) error {
	d := newDecoder(b, AccountRecordSize)
	out := UserAccount{
		ExternalID:        d.id(),
		Key:               d.bytes32(),
		PersonalMint:      d.bytes32(),
		LastMintAt:        d.time(),
		DailyMinted:       d.u64(),
		TotalMinted:       d.u64(),
		TotalLocked:       d.u64(),
		TotalRewardEarned: d.u64(),
		ConnectionsCount:  d.u64(),
		CreatedAt:         d.time(),
	}
	if d.err != nil {
		return d.err
	}
	*a = out
	return nil
}

// MarshalBinary encodes the connection in its fixed-width layout.
// A zero completion timestamp means incomplete.
func (c *Connection) MarshalBinary() ([]byte, error) {
	e := newEncoder(ConnectionRecordSize)
	e.id(c.ID)
	e.bytes32(c.Key)
	e.id(c.IdentityA)
	e.id(c.IdentityB)
	e.id(c.Beneficiary)
	e.bytes32(c.CommitA)
	e.bytes32(c.CommitB)
	e.flag(c.UnlockedA)
	e.flag(c.UnlockedB)
	e.time(c.CreatedAt)
	if c.CompletedAt != nil {
		e.time(*c.CompletedAt)
	} else {
		e.u64(0)
	}
	return e.buf, e.err
}

// UnmarshalBinary decodes a connection.
func (c *Connection) UnmarshalBinary(b []byte) error {
	d := newDecoder(b, ConnectionRecordSize)
	out := Connection{
		ID:          d.id(),
		Key:         d.bytes32(),
		IdentityA:   d.id(),
		IdentityB:   d.id(),
		Beneficiary: d.id(),
		CommitA:     d.bytes32(),
		CommitB:     d.bytes32(),
		UnlockedA:   d.flag(),
		UnlockedB:   d.flag(),
		CreatedAt:   d.time(),
	}
	if completed := d.u64(); completed != 0 {
		ts := time.Unix(int64(completed), 0).UTC()
		out.CompletedAt = &ts
	}
	if d.err != nil {
		return d.err
	}
	if (out.CompletedAt != nil) != out.Complete() {
		return fmt.Errorf("%w: completion does not match unlock flags", ErrCorruptRecord)
	}
	*c = out
	return nil
}

// MarshalBinary encodes the global state in its fixed-width layout.
func (g *GlobalState) MarshalBinary() ([]byte, error) {
	e := newEncoder(GlobalRecordSize)
	e.bytes32(g.RewardMint)
	e.bytes32(g.EscrowAccount)
	e.id(g.Admin)
	e.u64(g.TotalUsers)
	e.u64(g.TotalConnections)
	e.time(g.CreatedAt)
	return e.buf, e.err
}

// UnmarshalBinary decodes the global state.
func (g *GlobalState) UnmarshalBinary(b []byte) error {
	d := newDecoder(b, GlobalRecordSize)
	out := GlobalState{
		RewardMint:       d.bytes32(),
		EscrowAccount:    d.bytes32(),
		Admin:            d.id(),
		TotalUsers:       d.u64(),
		TotalConnections: d.u64(),
		CreatedAt:        d.time(),
	}
	if d.err != nil {
		return d.err
	}
	*g = out
	return nil
}
