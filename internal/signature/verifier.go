package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"users-service/internal/models"
	"users-service/internal/port"
)

// Verifier checks signatures issued by the file-upload service:
// hex(HMAC-SHA256(secret, filename + ":" + filetype)).
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign computes the signature for one file variant.
func (v *Verifier) Sign(filename string, filetype models.Filetype) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(filename + ":" + string(filetype)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) verifyMeta(variant string, meta models.FileMeta) error {
	expected, err := hex.DecodeString(v.Sign(meta.Filename, meta.Filetype))
	if err != nil {
		return err
	}
	given, err := hex.DecodeString(meta.Signature)
	if err != nil || !hmac.Equal(expected, given) {
		return fmt.Errorf("%w: %s variant", port.ErrSignatureMismatch, variant)
	}
	return nil
}

// Verify checks the original variant and, when present, the converted one.
func (v *Verifier) Verify(file models.UploadingFile) error {
	if err := v.verifyMeta("original", file.Original); err != nil {
		return err
	}
	if file.Converted != nil {
		if err := v.verifyMeta("converted", *file.Converted); err != nil {
			return err
		}
	}
	return nil
}
