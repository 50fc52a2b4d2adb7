package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBox_RequiresKey(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}

func TestSealOpen(t *testing.T) {
	b, err := NewBox("passphrase")
	require.NoError(t, err)

	sealed, err := b.Seal([]byte("hunter2"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hunter2")

	again, err := b.Seal([]byte("hunter2"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	out, err := b.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(out))
}

func TestOpen_Failures(t *testing.T) {
	b, err := NewBox("passphrase")
	require.NoError(t, err)
	other, err := NewBox("other")
	require.NoError(t, err)

	sealed, err := b.Seal([]byte("x"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = b.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSealMap(t *testing.T) {
	b, err := NewBox("passphrase")
	require.NoError(t, err)

	sealed, err := b.SealMap(nil)
	require.NoError(t, err)
	assert.Nil(t, sealed)

	opened, err := b.OpenMap(nil)
	require.NoError(t, err)
	assert.Empty(t, opened)

	in := map[string]string{"api_password": "pw", "refresh_token": "rt"}
	sealed, err = b.SealMap(in)
	require.NoError(t, err)
	opened, err = b.OpenMap(sealed)
	require.NoError(t, err)
	assert.Equal(t, in, opened)
}
