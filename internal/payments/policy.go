package payments

import (
	"strings"

	"github.com/codr1/Shuttlers/internal/config"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/proofs"
)

// ProofPolicy bounds what a proof-of-payment upload may be.
type ProofPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

func PolicyFromConfig(cfg config.PaymentsConfig) ProofPolicy {
	return ProofPolicy{MaxBytes: cfg.MaxProofBytes, AllowedTypes: cfg.AllowedProofTypes}
}

func DefaultPolicy() ProofPolicy {
	return ProofPolicy{MaxBytes: config.DefaultMaxProofBytes, AllowedTypes: config.DefaultAllowedProofTypes}
}

// Check validates the declared size and mime type of u.
func (p ProofPolicy) Check(u proofs.Upload) error {
	if u.Body == nil || u.Size <= 0 {
		return models.Invalid("paymentProof", "a proof file is required")
	}
	if p.MaxBytes > 0 && u.Size > p.MaxBytes {
		return models.Invalid("paymentProof", "file exceeds the %d byte limit", p.MaxBytes)
	}
	mime := strings.ToLower(strings.TrimSpace(u.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, allowed := range p.AllowedTypes {
		if mime == strings.ToLower(allowed) {
			return nil
		}
	}
	return models.Invalid("paymentProof", "file type %q is not allowed", u.MimeType)
}
