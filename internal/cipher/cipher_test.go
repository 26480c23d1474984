package cipher

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := New(key)
	require.NoError(t, err)

	plaintext := []byte(`{"accounts":{},"deletedIds":[]}`)
	envelope, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	got, err := c.Decrypt(envelope)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_RandomIV(t *testing.T) {
	key, _ := GenerateKey()
	c, _ := New(key)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 12+len("same")+16)
}

func TestDecrypt_Tampered(t *testing.T) {
	key, _ := GenerateKey()
	c, _ := New(key)

	envelope, _ := c.Encrypt([]byte("secret"))
	raw, _ := base64.StdEncoding.DecodeString(envelope)
	raw[len(raw)-1] ^= 0xff

	_, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestDecrypt_WrongKey(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()
	c1, _ := New(k1)
	c2, _ := New(k2)

	envelope, _ := c1.Encrypt([]byte("secret"))
	_, err := c2.Decrypt(envelope)
	assert.Error(t, err)
}

func TestDecrypt_Malformed(t *testing.T) {
	key, _ := GenerateKey()
	c, _ := New(key)

	tests := []string{"not base64 !!", base64.StdEncoding.EncodeToString([]byte("short"))}
	for _, in := range tests {
		_, err := c.Decrypt(in)
		assert.True(t, errors.Is(err, ErrInvalidCiphertext), "input %q", in)
	}
}

func TestParseKey(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	k := FormatKey(raw)

	tests := []struct {
		name string
		in   string
	}{
		{"raw url", k},
		{"quoted", `"` + k + `"`},
		{"padded", base64.URLEncoding.EncodeToString(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	_, err := ParseKey(FormatKey([]byte("too short")))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseKey(strings.Repeat("*", 43))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
