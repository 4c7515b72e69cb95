package secrets

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// CertificateEntry is a certificate bag of a key store.
type CertificateEntry struct {
	Alias       string
	LocalKeyID  string
	Certificate *x509.Certificate
}

// KeyEntry is a private key bag of a key store.
type KeyEntry struct {
	Alias      string
	LocalKeyID string
	Key        crypto.Signer
}

// KeyStore is a decoded PKCS#12 file. Entries keep the order of the file.
type KeyStore struct {
	Certificates []CertificateEntry
	Keys         []KeyEntry
}

// DecodeKeyStore decodes a PKCS#12 blob.
//
// Bags are read with golang.org/x/crypto/pkcs12 so friendlyName and localKeyId
// attributes survive. That decoder only knows the legacy SHA-1/3DES/RC2
// algorithms; stores using PBES2 and SHA-256 MACs (the OpenSSL 3 default) are
// read with go-pkcs12 instead.
func DecodeKeyStore(data []byte, password string) (*KeyStore, error) {
	if len(data) == 0 {
		return nil, &NotFoundError{Kind: "keystore"}
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, err
		}
		var modernErr error
		blocks, modernErr = gopkcs12.ToPEM(data, password)
		if modernErr != nil {
			if errors.Is(modernErr, gopkcs12.ErrIncorrectPassword) {
				return nil, modernErr
			}
			return nil, fmt.Errorf("invalid PKCS#12 data: %w", err)
		}
	}

	ks := &KeyStore{}
	for _, block := range blocks {
		alias := block.Headers["friendlyName"]
		localKeyID := block.Headers["localKeyId"]

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("invalid certificate in key store: %w", err)
			}
			ks.Certificates = append(ks.Certificates, CertificateEntry{
				Alias:       alias,
				LocalKeyID:  localKeyID,
				Certificate: cert,
			})
		case "PRIVATE KEY":
			key, err := parsePrivateKey(block)
			if err != nil {
				return nil, err
			}
			ks.Keys = append(ks.Keys, KeyEntry{
				Alias:      alias,
				LocalKeyID: localKeyID,
				Key:        key,
			})
		}
	}
	return ks, nil
}

// ToPEM labels keys "PRIVATE KEY" but encodes RSA keys as PKCS#1 and EC keys
// as SEC 1, so every form is tried.
func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported private key in key store: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return signer, nil
}

// Certificate returns the certificate whose friendlyName matches alias,
// ignoring case. An empty alias selects the first certificate.
func (ks *KeyStore) Certificate(alias string) (*x509.Certificate, error) {
	for _, entry := range ks.Certificates {
		if alias == "" || strings.EqualFold(entry.Alias, alias) {
			return entry.Certificate, nil
		}
	}
	return nil, &NotFoundError{Kind: "certificate", Alias: alias}
}

// PrivateKey returns the key whose friendlyName matches alias. When no key
// carries the alias but a certificate does, the key sharing that
// certificate's localKeyId is returned. An empty alias selects the first key.
func (ks *KeyStore) PrivateKey(alias string) (crypto.Signer, error) {
	for _, entry := range ks.Keys {
		if alias == "" || strings.EqualFold(entry.Alias, alias) {
			return entry.Key, nil
		}
	}

	for _, cert := range ks.Certificates {
		if cert.LocalKeyID == "" || !strings.EqualFold(cert.Alias, alias) {
			continue
		}
		for _, entry := range ks.Keys {
			if entry.LocalKeyID == cert.LocalKeyID {
				return entry.Key, nil
			}
		}
	}
	return nil, &NotFoundError{Kind: "private key", Alias: alias}
}

// Aliases lists the distinct friendly names present in the store.
func (ks *KeyStore) Aliases() []string {
	seen := make(map[string]bool)
	var aliases []string
	add := func(alias string) {
		if alias == "" || seen[strings.ToLower(alias)] {
			return
		}
		seen[strings.ToLower(alias)] = true
		aliases = append(aliases, alias)
	}
	for _, c := range ks.Certificates {
		add(c.Alias)
	}
	for _, k := range ks.Keys {
		add(k.Alias)
	}
	return aliases
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
