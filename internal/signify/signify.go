// Package signify implements the signify-compatible key and signature wire
// formats used by the update manifest (spec §3, §4.A). Byte layouts are
// fixed and must match bit-for-bit; this package hand-rolls the parsing the
// same way the teacher corpus hand-rolls its "raw ed25519" signature path
// (internal/verify/signature.go's FormatBinary case) rather than reaching
// for a signature library whose on-disk format doesn't match.
package signify

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"

	"github.com/peerio/updater/internal/model"
)

const (
	publicKeyLen = 42
	secretKeyLen = 104
	signatureLen = 74

	keyNumLen   = 8
	checksumLen = 8
)

var algoTag = [2]byte{'E', 'd'}

// PublicKey is the decoded 42-byte signify public key.
type PublicKey struct {
	KeyNum [keyNumLen]byte
	Key    ed25519.PublicKey
}

// SecretKey is the decoded 104-byte signify secret key. Only unencrypted
// (KDF rounds == 0) keys are supported, per spec §3.
type SecretKey struct {
	KeyNum [keyNumLen]byte
	Key    ed25519.PrivateKey
}

// Signature is the decoded 74-byte signify signature.
type Signature struct {
	KeyNum [keyNumLen]byte
	Sig    [ed25519.SignatureSize]byte
}

// prefix returns the 10-byte algorithm+key-number binding used to match a
// signature to the public key that produced it (spec §4.A).
func (p PublicKey) prefix() [keyNumLen + 2]byte {
	var out [keyNumLen + 2]byte
	copy(out[:2], algoTag[:])
	copy(out[2:], p.KeyNum[:])
	return out
}

func (s Signature) prefix() [keyNumLen + 2]byte {
	var out [keyNumLen + 2]byte
	copy(out[:2], algoTag[:])
	copy(out[2:], s.KeyNum[:])
	return out
}

// DecodePublicKey parses a base64-encoded 42-byte signify public key.
func DecodePublicKey(b64 string) (PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return PublicKey{}, model.Wrap(model.ErrBadLength, err, "decode public key base64")
	}
	if len(raw) != publicKeyLen {
		return PublicKey{}, model.Errf(model.ErrBadLength, "public key length %d, want %d", len(raw), publicKeyLen)
	}
	if raw[0] != algoTag[0] || raw[1] != algoTag[1] {
		return PublicKey{}, model.Errf(model.ErrUnknownAlgorithm, "public key algorithm %q", raw[:2])
	}
	var pk PublicKey
	copy(pk.KeyNum[:], raw[2:2+keyNumLen])
	pk.Key = append(ed25519.PublicKey(nil), raw[2+keyNumLen:]...)
	return pk, nil
}

// Encode returns the base64 wire encoding of the public key.
func (p PublicKey) Encode() string {
	raw := make([]byte, 0, publicKeyLen)
	raw = append(raw, algoTag[:]...)
	raw = append(raw, p.KeyNum[:]...)
	raw = append(raw, p.Key...)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeSecretKey parses a base64-encoded 104-byte signify secret key,
// validating the embedded checksum (spec §3 invariant, §8 property 2).
func DecodeSecretKey(b64 string) (SecretKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return SecretKey{}, model.Wrap(model.ErrBadLength, err, "decode secret key base64")
	}
	if len(raw) != secretKeyLen {
		return SecretKey{}, model.Errf(model.ErrBadLength, "secret key length %d, want %d", len(raw), secretKeyLen)
	}
	if raw[0] != algoTag[0] || raw[1] != algoTag[1] {
		return SecretKey{}, model.Errf(model.ErrUnknownAlgorithm, "secret key algorithm %q", raw[:2])
	}
	kdfAlgo := raw[2:4]
	kdfRounds := raw[4:8]
	if kdfAlgo[0] != 0 || kdfAlgo[1] != 0 || kdfRounds[0] != 0 || kdfRounds[1] != 0 || kdfRounds[2] != 0 || kdfRounds[3] != 0 {
		return SecretKey{}, model.Errf(model.ErrUnsupportedKDF, "encrypted secret keys are not supported")
	}
	// layout: algo(2) kdfAlgo(2) kdfRounds(4) salt(16) checksum(8) keynum(8) key(64)
	checksum := raw[24:32]
	keyNum := raw[32:40]
	secret := raw[40:104]

	sum := sha512.Sum512(secret)
	if subtle.ConstantTimeCompare(sum[:checksumLen], checksum) != 1 {
		return SecretKey{}, model.Errf(model.ErrChecksumMismatch, "secret key checksum mismatch")
	}

	var sk SecretKey
	copy(sk.KeyNum[:], keyNum)
	sk.Key = append(ed25519.PrivateKey(nil), secret...)
	return sk, nil
}

// Encode returns the base64 wire encoding of the secret key (unencrypted
// KDF fields, zeroed salt — this module never writes encrypted keys).
func (s SecretKey) Encode() string {
	raw := make([]byte, 0, secretKeyLen)
	raw = append(raw, algoTag[:]...)
	raw = append(raw, 0, 0) // kdf algo
	raw = append(raw, 0, 0, 0, 0) // kdf rounds
	raw = append(raw, make([]byte, 16)...) // salt, unused when KDF rounds == 0
	sum := sha512.Sum512(s.Key)
	raw = append(raw, sum[:checksumLen]...)
	raw = append(raw, s.KeyNum[:]...)
	raw = append(raw, s.Key...)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeSignature parses a base64-encoded 74-byte signify signature.
func DecodeSignature(b64 string) (Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Signature{}, model.Wrap(model.ErrBadLength, err, "decode signature base64")
	}
	if len(raw) != signatureLen {
		return Signature{}, model.Errf(model.ErrBadLength, "signature length %d, want %d", len(raw), signatureLen)
	}
	if raw[0] != algoTag[0] || raw[1] != algoTag[1] {
		return Signature{}, model.Errf(model.ErrUnknownAlgorithm, "signature algorithm %q", raw[:2])
	}
	var sig Signature
	copy(sig.KeyNum[:], raw[2:2+keyNumLen])
	copy(sig.Sig[:], raw[2+keyNumLen:])
	return sig, nil
}

// Encode returns the base64 wire encoding of the signature.
func (s Signature) Encode() string {
	raw := make([]byte, 0, signatureLen)
	raw = append(raw, algoTag[:]...)
	raw = append(raw, s.KeyNum[:]...)
	raw = append(raw, s.Sig[:]...)
	return base64.StdEncoding.EncodeToString(raw)
}

// GenerateKeyPair samples a fresh signify-compatible Ed25519 keypair (spec
// §4.A). Returns the base64-encoded public and secret keys.
func GenerateKeyPair() (publicKeyB64, secretKeyB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", model.Wrap(model.ErrConfigInvalid, err, "generate ed25519 keypair")
	}
	var keyNum [keyNumLen]byte
	if _, err := rand.Read(keyNum[:]); err != nil {
		return "", "", model.Wrap(model.ErrConfigInvalid, err, "sample key number")
	}
	pk := PublicKey{KeyNum: keyNum, Key: pub}
	sk := SecretKey{KeyNum: keyNum, Key: priv}
	return pk.Encode(), sk.Encode(), nil
}

// Sign signs text with secretKeyB64 and returns the base64-encoded signify
// signature (spec §4.A).
func Sign(secretKeyB64, text string) (string, error) {
	sk, err := DecodeSecretKey(secretKeyB64)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(sk.Key, []byte(text))
	out := Signature{KeyNum: sk.KeyNum}
	copy(out.Sig[:], sig)
	return out.Encode(), nil
}

// Verify checks signatureB64 against text using the first key in
// publicKeysB64 whose algorithm+key-number prefix matches the signature's
// (spec §4.A: first matching key wins, comparisons are constant-time).
func Verify(publicKeysB64 []string, signatureB64, text string) error {
	sig, err := DecodeSignature(signatureB64)
	if err != nil {
		return err
	}
	sigPrefix := sig.prefix()

	var matched *PublicKey
	for _, b64 := range publicKeysB64 {
		pk, err := DecodePublicKey(b64)
		if err != nil {
			continue
		}
		pkPrefix := pk.prefix()
		if subtle.ConstantTimeCompare(pkPrefix[:], sigPrefix[:]) == 1 {
			matched = &pk
			break
		}
	}
	if matched == nil {
		return model.Errf(model.ErrNoMatchingKey, "no configured public key matches signature prefix")
	}
	if !ed25519.Verify(matched.Key, []byte(text), sig.Sig[:]) {
		return model.Errf(model.ErrInvalidSignature, "signature does not verify against matching key")
	}
	return nil
}
