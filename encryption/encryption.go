// Package encryption seals request frames for the auction service.
//
// A sealed message is laid out as:
//
//	keyID (1 byte) || ephemeral X25519 public key (32 bytes) || AES-256-GCM ciphertext + tag
//
// The AES key and nonce are derived with HKDF-SHA256 from the X25519 shared secret, so every
// message uses a fresh ephemeral key and no nonce travels on the wire. The key id and ephemeral
// key are bound as additional authenticated data.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/arloliu/adpayload/errs"
)

const (
	KeySize      = curve25519.PointSize
	keyIDSize    = 1
	aesKeySize   = 32
	nonceSize    = 12
	tagSize      = 16
	messageStart = keyIDSize + KeySize
)

var hkdfInfo = []byte("adpayload-frame-v1")

type (
	PublicKey  [KeySize]byte
	PrivateKey [KeySize]byte
)

// Encryptor seals a formatted frame. The frame bytes are opaque to the encryptor.
type Encryptor interface {
	Encrypt(ctx context.Context, frame []byte) ([]byte, error)
}

// Decryptor opens a message produced by the matching Encryptor.
type Decryptor interface {
	Decrypt(message []byte) ([]byte, error)
}

// GenerateKeyPair creates a new X25519 key pair from crypto/rand.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	var priv PrivateKey
	if _, err := rand.Read(priv[:]); err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("generate private key: %w", err)
	}

	pub, err := priv.Public()
	if err != nil {
		return PublicKey{}, PrivateKey{}, err
	}

	return pub, priv, nil
}

// Public derives the public key of k.
func (k PrivateKey) Public() (PublicKey, error) {
	var pub PublicKey
	out, err := curve25519.X25519(k[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("derive public key: %w", err)
	}
	copy(pub[:], out)

	return pub, nil
}

// X25519Encryptor seals frames to one recipient key.
type X25519Encryptor struct {
	keyID     uint8
	recipient PublicKey
	random    io.Reader
}

var _ Encryptor = (*X25519Encryptor)(nil)

// NewEncryptor returns an encryptor for the recipient key published under keyID.
func NewEncryptor(keyID uint8, recipient PublicKey) *X25519Encryptor {
	return &X25519Encryptor{keyID: keyID, recipient: recipient, random: rand.Reader}
}

// Encrypt seals frame under a fresh ephemeral key.
func (e *X25519Encryptor) Encrypt(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ephemeral := make([]byte, KeySize)
	if _, err := io.ReadFull(e.random, ephemeral); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	ephemeralPub, err := curve25519.X25519(ephemeral, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive ephemeral public key: %w", err)
	}
	shared, err := curve25519.X25519(ephemeral, e.recipient[:])
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}

	header := make([]byte, messageStart, messageStart+len(frame)+tagSize)
	header[0] = e.keyID
	copy(header[keyIDSize:], ephemeralPub)

	aead, nonce, err := deriveAEAD(shared, header)
	if err != nil {
		return nil, err
	}

	return aead.Seal(header, nonce, frame, header), nil
}

// X25519Decryptor opens messages sealed to any of its keys.
type X25519Decryptor struct {
	keys map[uint8]PrivateKey
}

var _ Decryptor = (*X25519Decryptor)(nil)

// NewDecryptor returns a decryptor holding keys indexed by key id. The map is copied.
func NewDecryptor(keys map[uint8]PrivateKey) *X25519Decryptor {
	d := &X25519Decryptor{keys: make(map[uint8]PrivateKey, len(keys))}
	for id, k := range keys {
		d.keys[id] = k
	}

	return d
}

// Decrypt opens message and returns the frame it carries.
//
// Returns:
//   - errs.ErrCiphertextShort when message cannot hold the header and tag
//   - errs.ErrUnknownKeyID when no private key is registered for the key id
//   - errs.ErrDecryptionFailed when authentication fails
func (d *X25519Decryptor) Decrypt(message []byte) ([]byte, error) {
	if len(message) < messageStart+tagSize {
		return nil, fmt.Errorf("%w: %d bytes", errs.ErrCiphertextShort, len(message))
	}

	priv, ok := d.keys[message[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownKeyID, message[0])
	}

	header := message[:messageStart]
	shared, err := curve25519.X25519(priv[:], header[keyIDSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecryptionFailed, err)
	}

	aead, nonce, err := deriveAEAD(shared, header)
	if err != nil {
		return nil, err
	}

	frame, err := aead.Open(nil, nonce, message[messageStart:], header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecryptionFailed, err)
	}

	return frame, nil
}

func deriveAEAD(shared, header []byte) (cipher.AEAD, []byte, error) {
	material := make([]byte, aesKeySize+nonceSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, header, hkdfInfo), material); err != nil {
		return nil, nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(material[:aesKeySize])
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("create GCM: %w", err)
	}

	return aead, material[aesKeySize:], nil
}
