package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := New("correct horse battery staple")
	require.NoError(t, err)
	require.NotNil(t, e)

	stored, err := e.Encrypt("s3cret-api-key")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(stored))
	assert.NotContains(t, stored, "s3cret")

	value, encrypted, err := e.Decrypt(stored)
	require.NoError(t, err)
	assert.True(t, encrypted)
	assert.Equal(t, "s3cret-api-key", value)
}

func TestEncrypt_NonceMakesOutputUnique(t *testing.T) {
	e, err := New("passphrase")
	require.NoError(t, err)

	a, err := e.Encrypt("same value")
	require.NoError(t, err)
	b, err := e.Encrypt("same value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_LegacyPlaintextPassesThrough(t *testing.T) {
	e, err := New("passphrase")
	require.NoError(t, err)

	value, encrypted, err := e.Decrypt("plain-old-password")
	require.NoError(t, err)
	assert.False(t, encrypted)
	assert.Equal(t, "plain-old-password", value)
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	e1, err := New("one")
	require.NoError(t, err)
	e2, err := New("two")
	require.NoError(t, err)

	stored, err := e1.Encrypt("secret")
	require.NoError(t, err)

	_, encrypted, err := e2.Decrypt(stored)
	assert.True(t, encrypted)
	assert.Error(t, err)
}

func TestDecrypt_Malformed(t *testing.T) {
	e, err := New("passphrase")
	require.NoError(t, err)

	_, _, err = e.Decrypt("enc:v1:not-base64!!!")
	assert.Error(t, err)

	_, _, err = e.Decrypt("enc:v1:AAAA")
	assert.Error(t, err)
}

func TestNilEncryptor(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	require.Nil(t, e)

	// Encrypt on the nil variant stores plaintext.
	stored, err := e.Encrypt("password")
	require.NoError(t, err)
	assert.Equal(t, "password", stored)
	assert.False(t, IsEncrypted(stored))

	// Plaintext passes through.
	value, encrypted, err := e.Decrypt("password")
	require.NoError(t, err)
	assert.False(t, encrypted)
	assert.Equal(t, "password", value)

	// Encrypted values cannot be opened without a key.
	_, encrypted, err = e.Decrypt("enc:v1:AAAA")
	assert.True(t, encrypted)
	assert.ErrorIs(t, err, ErrNoKey)
}
