package auth

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
)

// SignTicket wraps ticket in CMS signed-data and returns it base64 encoded.
// The ticket is encapsulated in the message, the signer certificate is
// included and the digest is SHA-256.
func SignTicket(ticket []byte, cert *x509.Certificate, key crypto.Signer) (string, error) {
	if cert == nil || key == nil {
		return "", errors.New("certificate and private key are required")
	}

	sd, err := pkcs7.NewSignedData(ticket)
	if err != nil {
		return "", fmt.Errorf("create signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		return "", fmt.Errorf("add signer: %w", err)
	}

	der, err := sd.Finish()
	if err != nil {
		return "", fmt.Errorf("finish signed data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// VerifyTicket checks a SignTicket result and returns the signer
// certificate and the signed ticket.
func VerifyTicket(encoded string) (*x509.Certificate, []byte, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decode signed ticket: %w", err)
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parse signed ticket: %w", err)
	}
	if err := p7.Verify(); err != nil {
		return nil, nil, fmt.Errorf("verify signed ticket: %w", err)
	}

	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, nil, errors.New("signed ticket must have exactly one signer")
	}
	return signer, p7.Content, nil
}
