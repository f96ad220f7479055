package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

func pemEncode(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}

func TestParseKeys_RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}

	signer, err := ParsePrivateKey(pemEncode(t, "PRIVATE KEY", privDER))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if _, ok := signer.(*ecdsa.PrivateKey); !ok {
		t.Errorf("parsed key is %T, want *ecdsa.PrivateKey", signer)
	}

	pub, err := ParsePublicKey(pemEncode(t, "PUBLIC KEY", pubDER))
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if _, ok := pub.(*ecdsa.PublicKey); !ok {
		t.Errorf("parsed key is %T, want *ecdsa.PublicKey", pub)
	}
}

func TestParseKeys_Invalid(t *testing.T) {
	if _, err := ParsePrivateKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty: err = %v, want ErrInvalidKey", err)
	}
	if _, err := ParsePrivateKey("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("wrong block type: err = %v, want ErrInvalidKey", err)
	}
	if _, err := ParsePublicKey("not pem and not a real path/at all"); err == nil {
		t.Error("expected error for a nonexistent key file path")
	}
}
