package encryption

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/adpayload/errs"
)

func newPair(t *testing.T, keyID uint8) (*X25519Encryptor, *X25519Decryptor) {
	t.Helper()

	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	return NewEncryptor(keyID, pub), NewDecryptor(map[uint8]PrivateKey{keyID: priv})
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, dec := newPair(t, 7)

	for _, frame := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0}, 4096)} {
		msg, err := enc.Encrypt(context.Background(), frame)
		require.NoError(t, err)
		require.Len(t, msg, 1+KeySize+len(frame)+tagSize)
		require.Equal(t, uint8(7), msg[0])

		got, err := dec.Decrypt(msg)
		require.NoError(t, err)
		require.True(t, bytes.Equal(frame, got))
	}
}

func TestEncrypt_FreshEphemeralKey(t *testing.T) {
	enc, _ := newPair(t, 1)

	a, err := enc.Encrypt(context.Background(), []byte("frame"))
	require.NoError(t, err)
	b, err := enc.Encrypt(context.Background(), []byte("frame"))
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestEncrypt_CanceledContext(t *testing.T) {
	enc, _ := newPair(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := enc.Encrypt(ctx, []byte("frame"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecrypt_Errors(t *testing.T) {
	enc, dec := newPair(t, 3)
	msg, err := enc.Encrypt(context.Background(), []byte("buyer inputs"))
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, err := dec.Decrypt(msg[:KeySize])
		require.ErrorIs(t, err, errs.ErrCiphertextShort)
	})

	t.Run("unknown key id", func(t *testing.T) {
		other := append([]byte(nil), msg...)
		other[0] = 4
		_, err := dec.Decrypt(other)
		require.ErrorIs(t, err, errs.ErrUnknownKeyID)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		other := append([]byte(nil), msg...)
		other[len(other)-1] ^= 0xff
		_, err := dec.Decrypt(other)
		require.ErrorIs(t, err, errs.ErrDecryptionFailed)
	})

	t.Run("tampered ephemeral key", func(t *testing.T) {
		other := append([]byte(nil), msg...)
		other[2] ^= 0x01
		_, err := dec.Decrypt(other)
		require.ErrorIs(t, err, errs.ErrDecryptionFailed)
	})

	t.Run("wrong private key", func(t *testing.T) {
		_, priv, err := GenerateKeyPair()
		require.NoError(t, err)
		_, err = NewDecryptor(map[uint8]PrivateKey{3: priv}).Decrypt(msg)
		require.ErrorIs(t, err, errs.ErrDecryptionFailed)
	})
}

func TestPrivateKey_Public(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	derived, err := priv.Public()
	require.NoError(t, err)
	require.Equal(t, pub, derived)
}
