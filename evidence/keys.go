package evidence

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
)

var (
	ErrNilSigner      = errors.New("evidence: signer cannot be nil")
	ErrNilCertificate = errors.New("evidence: certificate cannot be nil")
	ErrKeyMismatch    = errors.New("evidence: signer public key does not match certificate")
)

// checkSignerCertificate fails unless signer holds the key certified by cert.
func checkSignerCertificate(signer crypto.Signer, cert *x509.Certificate) error {
	if signer == nil {
		return ErrNilSigner
	}
	if cert == nil {
		return ErrNilCertificate
	}
	signerPub := signer.Public()
	if signerPub == nil {
		return fmt.Errorf("%w: signer has no public key", ErrKeyMismatch)
	}

	signerDER, err := x509.MarshalPKIXPublicKey(signerPub)
	if err != nil {
		return fmt.Errorf("failed to marshal signer public key: %w", err)
	}
	certDER, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate public key: %w", err)
	}
	if !bytes.Equal(signerDER, certDER) {
		return ErrKeyMismatch
	}
	return nil
}
