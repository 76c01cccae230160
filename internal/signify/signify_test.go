package signify

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/peerio/updater/internal/model"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	pub, sec, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	sig, err := Sign(sec, "Hello world")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := Verify([]string{pub}, sig, "Hello world"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	t.Parallel()

	pub, sec, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sig, err := Sign(sec, "Hello world")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = Verify([]string{pub}, sig, "Hello World")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestVerifyNoMatchingKey(t *testing.T) {
	t.Parallel()

	_, sec, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	otherPub, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sig, err := Sign(sec, "Hello world")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = Verify([]string{otherPub}, sig, "Hello world")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrNoMatchingKey {
		t.Fatalf("expected NoMatchingKey, got %v", err)
	}
}

func TestDecodeSecretKeyChecksumMismatch(t *testing.T) {
	t.Parallel()

	_, sec, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if _, err := DecodeSecretKey(sec); err != nil {
		t.Fatalf("DecodeSecretKey: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sec)
	if err != nil {
		t.Fatalf("decode secret key base64: %v", err)
	}
	raw[40] ^= 0xFF // corrupt the secret, checksum now disagrees
	corrupted := base64.StdEncoding.EncodeToString(raw)

	_, err = DecodeSecretKey(corrupted)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrChecksumMismatch {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
}

func TestDecodePublicKeyBadLength(t *testing.T) {
	t.Parallel()

	_, err := DecodePublicKey("AAAA")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrBadLength {
		t.Fatalf("expected BadLength, got %v", err)
	}
}

func TestDecodeSignatureBadLength(t *testing.T) {
	t.Parallel()

	_, err := DecodeSignature(strings.Repeat("A", 8))
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrBadLength {
		t.Fatalf("expected BadLength, got %v", err)
	}
}
