// Package proofs hands proof-of-payment bytes to a blob store and returns the
// reference persisted with the payment.
package proofs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/codr1/Shuttlers/internal/models"
)

// Upload is one proof file as received from the payer.
type Upload struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

// Store persists an upload and returns where it can be fetched.
type Store interface {
	Put(ctx context.Context, u Upload) (models.ProofArtifact, error)
}

// LocalStore writes proofs under a directory. Meant for development and tests.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, u Upload) (models.ProofArtifact, error) {
	if err := ctx.Err(); err != nil {
		return models.ProofArtifact{}, err
	}
	name := "payment-" + uuid.NewString() + strings.ToLower(filepath.Ext(u.OriginalName))
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return models.ProofArtifact{}, fmt.Errorf("create proof file: %w", err)
	}
	written, err := io.Copy(f, u.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return models.ProofArtifact{}, fmt.Errorf("write proof file: %w", err)
	}
	return models.ProofArtifact{
		URL:          s.baseURL + "/" + name,
		PublicID:     name,
		OriginalName: u.OriginalName,
		MimeType:     u.MimeType,
		Size:         written,
	}, nil
}
