package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// KeyStorePassword is the password of every generated key store fixture.
const KeyStorePassword = "changeit"

// KeyStoreFixture is a self-signed certificate with its key, packed as a
// PKCS#12 key store.
//
// Example usage:
//
//	ks := NewKeyStoreFixture(t, "test")
//	src, _ := secrets.NewBytesSource(ks.PKCS12)
type KeyStoreFixture struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
	Password    string
	PKCS12      []byte
}

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	keyErr  error
)

// sharedKey avoids generating an RSA key per test.
func sharedKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		testKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("Failed to generate RSA key: %v", keyErr)
	}
	return testKey
}

// NewSelfSignedCertificate creates a certificate for commonName valid from an
// hour ago for a year. The subject carries a CUIT serial number as AFIP
// issued certificates do.
func NewSelfSignedCertificate(t testing.TB, commonName string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key := sharedKey(t)
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("Failed to generate serial: %v", err)
	}

	name := pkix.Name{
		CommonName:   commonName,
		Organization: []string{"afipws test"},
		SerialNumber: "CUIT 20304050603",
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert, key
}

// NewKeyStoreFixture packs a fresh certificate for commonName with the
// legacy 3DES encoding, readable by every decoder.
func NewKeyStoreFixture(t testing.TB, commonName string) *KeyStoreFixture {
	t.Helper()
	return newKeyStoreFixture(t, commonName, gopkcs12.LegacyDES)
}

// NewModernKeyStoreFixture packs a certificate with PBES2/AES, the default
// of current OpenSSL releases.
func NewModernKeyStoreFixture(t testing.TB, commonName string) *KeyStoreFixture {
	t.Helper()
	return newKeyStoreFixture(t, commonName, gopkcs12.Modern)
}

func newKeyStoreFixture(t testing.TB, commonName string, encoder *gopkcs12.Encoder) *KeyStoreFixture {
	t.Helper()

	cert, key := NewSelfSignedCertificate(t, commonName)
	blob, err := encoder.Encode(key, cert, nil, KeyStorePassword)
	if err != nil {
		t.Fatalf("Failed to encode PKCS#12: %v", err)
	}
	return &KeyStoreFixture{
		Certificate: cert,
		PrivateKey:  key,
		Password:    KeyStorePassword,
		PKCS12:      blob,
	}
}

// Base64 returns the key store as base64 text.
func (f *KeyStoreFixture) Base64() string {
	return base64.StdEncoding.EncodeToString(f.PKCS12)
}

// WriteFile writes the key store into dir and returns its path.
func (f *KeyStoreFixture) WriteFile(t testing.TB, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "keystore.p12")
	if err := os.WriteFile(path, f.PKCS12, 0600); err != nil {
		t.Fatalf("Failed to write key store: %v", err)
	}
	return path
}
