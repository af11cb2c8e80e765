package evidence

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"time"

	"github.com/digitorus/pixelmark/verify"
	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
)

// VerifyOptions configure VerifySignature.
type VerifyOptions struct {
	// Roots are the trusted roots for the signer chain. If nil, the signature is
	// checked without building a chain and the issuer is reported untrusted.
	Roots *x509.CertPool

	// RequireDigitalSignatureKU requires the Digital Signature bit in the signer's
	// Key Usage.
	RequireDigitalSignatureKU bool

	// RequireTimestamp rejects signatures without a TSA timestamp.
	RequireTimestamp bool

	// AllowedEKUs, when set, restricts the signer's Extended Key Usage. Certificates
	// without the extension are accepted.
	AllowedEKUs []x509.ExtKeyUsage
}

// DefaultVerifyOptions returns the default evidence verification options.
func DefaultVerifyOptions() *VerifyOptions {
	return &VerifyOptions{RequireDigitalSignatureKU: true}
}

// Verification is the outcome of VerifySignature.
type Verification struct {
	Report        *Report              `json:"report"`
	Signer        *x509.Certificate    `json:"-"`
	SignerName    string               `json:"signer_name"`
	SigningTime   *time.Time           `json:"signing_time,omitempty"`
	TrustedIssuer bool                 `json:"trusted_issuer"`
	TimeStamp     *timestamp.Timestamp `json:"time_stamp,omitempty"`
	KeyUsageValid bool                 `json:"key_usage_valid"`
	KeyUsageError string               `json:"key_usage_error,omitempty"`
}

// VerifySignature checks the detached signature of a bundle and returns the signed
// report. Failures are reported as *verify.EvidenceError.
func VerifySignature(b *Bundle, options *VerifyOptions) (*Verification, error) {
	if options == nil {
		options = DefaultVerifyOptions()
	}
	if b == nil || len(b.Signature) == 0 {
		return nil, &verify.EvidenceError{Msg: "bundle carries no signature"}
	}

	p7, err := pkcs7.Parse(b.Signature)
	if err != nil {
		return nil, &verify.EvidenceError{Msg: "failed to parse signature", Err: err}
	}
	p7.Content = b.Report

	v := &Verification{}
	if options.Roots != nil {
		if err := p7.VerifyWithChain(options.Roots); err != nil {
			return nil, &verify.EvidenceError{Msg: "signature verification failed", Err: err}
		}
		v.TrustedIssuer = true
	} else if err := p7.Verify(); err != nil {
		return nil, &verify.EvidenceError{Msg: "signature verification failed", Err: err}
	}

	v.Signer = p7.GetOnlySigner()
	if v.Signer == nil {
		return nil, &verify.EvidenceError{Msg: "signature must have exactly one signer"}
	}
	v.SignerName = v.Signer.Subject.CommonName

	var signingTime time.Time
	if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeSigningTime, &signingTime); err == nil {
		v.SigningTime = &signingTime
	}

	if v.TimeStamp, err = signatureTimestamp(p7); err != nil {
		return nil, &verify.EvidenceError{Msg: "invalid timestamp", Err: err}
	}
	if v.TimeStamp == nil && options.RequireTimestamp {
		return nil, &verify.EvidenceError{Msg: "signature has no timestamp"}
	}

	v.KeyUsageValid, v.KeyUsageError = validateKeyUsage(v.Signer, options)
	if !v.KeyUsageValid {
		return nil, &verify.EvidenceError{Msg: v.KeyUsageError}
	}

	var report Report
	if err := json.Unmarshal(b.Report, &report); err != nil {
		return nil, &verify.EvidenceError{Msg: "failed to decode report", Err: err}
	}
	if report.Response == nil || report.Response.Image.Hash != report.ImageHash {
		return nil, &verify.EvidenceError{Msg: "report image hash does not match its verification response"}
	}
	v.Report = &report
	return v, nil
}

// signatureTimestamp returns the RFC 3161 token countersigning the signer, after
// checking it covers the signature value.
func signatureTimestamp(p7 *pkcs7.PKCS7) (*timestamp.Timestamp, error) {
	for _, s := range p7.Signers {
		for _, attr := range s.UnauthenticatedAttributes {
			if !attr.Type.Equal(oidTimeStampToken) {
				continue
			}
			ts, err := timestamp.Parse(attr.Value.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse timestamp: %w", err)
			}
			h := ts.HashAlgorithm.New()
			h.Write(s.EncryptedDigest)
			if !bytes.Equal(h.Sum(nil), ts.HashedMessage) {
				return nil, fmt.Errorf("timestamp hash does not match")
			}
			return ts, nil
		}
	}
	return nil, nil
}

// validateKeyUsage checks the signer certificate's Key Usage and Extended Key Usage
// against the options.
func validateKeyUsage(cert *x509.Certificate, options *VerifyOptions) (bool, string) {
	if options.RequireDigitalSignatureKU && cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return false, "certificate does not have Digital Signature key usage"
	}
	if len(options.AllowedEKUs) == 0 || len(cert.ExtKeyUsage) == 0 {
		return true, ""
	}
	for _, allowed := range options.AllowedEKUs {
		for _, eku := range cert.ExtKeyUsage {
			if eku == allowed || eku == x509.ExtKeyUsageAny {
				return true, ""
			}
		}
	}
	return false, "certificate does not have a suitable Extended Key Usage for evidence signing"
}
