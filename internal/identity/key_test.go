package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString_Bech32RoundTrip(t *testing.T) {
	k := DeriveRaw(NamespaceUser, []byte("alice"))

	s := k.String()
	assert.True(t, strings.HasPrefix(s, KeyHRP+"1"))

	parsed, err := ParseKey(s)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseKey_Rejects(t *testing.T) {
	k := DeriveRaw(NamespaceUser, []byte("alice"))

	t.Run("corrupted checksum", func(t *testing.T) {
		s := k.String()
		last := s[len(s)-1]
		repl := byte('q')
		if last == 'q' {
			repl = 'p'
		}
		_, err := ParseKey(s[:len(s)-1] + string(repl))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseKey("not-a-key")
		assert.Error(t, err)
	})
}

func TestKey_JSONUsesBech32(t *testing.T) {
	k := DeriveRaw(NamespaceEscrow, []byte("me"))
	raw, err := json.Marshal(struct {
		Key Key `json:"key"`
	}{Key: k})
	require.NoError(t, err)
	assert.Contains(t, string(raw), k.String())

	var out struct {
		Key Key `json:"key"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, k, out.Key)
}

func TestKeyFromBytes(t *testing.T) {
	k := DeriveRaw(NamespaceUser, []byte("bob"))
	got, err := KeyFromBytes(k.Bytes())
	require.NoError(t, err)
	assert.Equal(t, k, got)

	_, err = KeyFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}
