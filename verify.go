package pixelmark

import (
	"context"
	"crypto"
	"crypto/x509"

	"github.com/digitorus/pixelmark/evidence"
)

// Evidence signs the outcome of the search as a forensic report about subject (e.g.
// the file name). The bundle can be checked later with evidence.VerifySignature.
func (b *ExtractBuilder) Evidence(ctx context.Context, subject string, signer crypto.Signer, cert *x509.Certificate, opts *evidence.SignOptions) (*evidence.Bundle, error) {
	report, err := evidence.NewReport(b.Response(), subject)
	if err != nil {
		return nil, err
	}
	return evidence.Sign(ctx, report, signer, cert, opts)
}
