// Package evidence turns a verification Response into a signed, timestamped and
// portable forensic record.
//
// A Report is serialised to JSON and signed with a detached PKCS#7 (CMS) signature,
// optionally countersigned by an RFC 3161 Time-Stamp Authority. The report and its
// signature travel together as a zstd-compressed Bundle.
package evidence

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/digitorus/pixelmark/verify"
	"github.com/google/uuid"
)

// Report is the signed statement about one verification.
type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Subject names the examined artefact, e.g. a file name.
	Subject string `json:"subject,omitempty"`

	// ImageHash is the SHA-256 of the examined RGBA8888 pixels.
	ImageHash string `json:"image_hash"`

	Response *verify.Response `json:"response"`
}

// NewReport wraps a verification response in a report with a fresh random ID.
func NewReport(resp *verify.Response, subject string) (*Report, error) {
	if resp == nil {
		return nil, errors.New("evidence: nil verification response")
	}
	return &Report{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Subject:   subject,
		ImageHash: resp.Image.Hash,
		Response:  resp,
	}, nil
}

// Marshal returns the exact bytes that are signed.
func (r *Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
