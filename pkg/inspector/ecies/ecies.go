// Package ecies encrypts property values for a recipient P-256 public key.
//
// The scheme is ECIES: an ephemeral P-256 key agrees a shared secret with the
// recipient key, SHA-256 of that secret keys AES-256-GCM, and the result is
// serialized as
//
//	[version 1][ephemeral public key 65][iv 16][tag 16][ciphertext]
//
// and base64 encoded. The ephemeral key is uncompressed. Only the holder of
// the recipient private key can decrypt; this package never decrypts.
package ecies

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Layout constants.
const (
	// Version is the first byte of every ciphertext.
	Version byte = 0x00

	// PublicKeySize is the size of an uncompressed P-256 point.
	PublicKeySize = 65

	// CompressedKeySize is the size of a compressed P-256 point.
	CompressedKeySize = 33

	// IVSize is the AES-GCM nonce size.
	IVSize = 16

	// TagSize is the AES-GCM authentication tag size.
	TagSize = 16

	// HeaderSize is everything before the ciphertext.
	HeaderSize = 1 + PublicKeySize + IVSize + TagSize
)

// Sentinel errors.
var (
	// ErrInvalidPublicKey indicates the recipient key is not a P-256 point in hex.
	ErrInvalidPublicKey = errors.New("invalid recipient public key")

	// ErrKeyGeneration indicates the ephemeral key or IV could not be generated.
	ErrKeyGeneration = errors.New("ephemeral key generation failed")

	// ErrCipher indicates key agreement or AES-GCM setup failed.
	ErrCipher = errors.New("cipher failure")
)

// Encrypt encrypts plaintext for the recipient key, given in hex as a
// compressed or uncompressed P-256 point, and returns the base64 ciphertext.
func Encrypt(plaintext, recipientPublicKeyHex string) (string, error) {
	return EncryptWithReader(rand.Reader, plaintext, recipientPublicKeyHex)
}

// EncryptWithReader is Encrypt with an explicit randomness source for the
// ephemeral key and IV.
func EncryptWithReader(r io.Reader, plaintext, recipientPublicKeyHex string) (string, error) {
	recipient, err := ParsePublicKey(recipientPublicKeyHex)
	if err != nil {
		return "", err
	}

	ephemeral, err := ecdh.P256().GenerateKey(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return "", fmt.Errorf("%w: ecdh: %v", ErrCipher, err)
	}
	key := sha256.Sum256(shared)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrKeyGeneration, err)
	}

	// Seal appends the tag after the ciphertext; the layout wants it first.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, HeaderSize+len(ct))
	out = append(out, Version)
	out = append(out, ephemeral.PublicKey().Bytes()...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// ParsePublicKey decodes a hex P-256 point. An optional 0x prefix and
// surrounding whitespace are ignored.
func ParsePublicKey(s string) (*ecdh.PublicKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	switch len(raw) {
	case PublicKeySize:
	case CompressedKeySize:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("%w: compressed point not on curve", ErrInvalidPublicKey)
		}
		raw = make([]byte, PublicKeySize)
		raw[0] = 0x04
		x.FillBytes(raw[1:33])
		y.FillBytes(raw[33:])
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(raw))
	}

	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}
