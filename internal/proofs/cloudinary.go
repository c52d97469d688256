package proofs

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/codr1/Shuttlers/internal/models"
)

// CloudinaryStore uploads proofs into a Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, u Upload) (models.ProofArtifact, error) {
	result, err := s.cld.Upload.Upload(ctx, u.Body, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     "payment-" + uuid.NewString(),
		ResourceType: "auto",
	})
	if err != nil {
		return models.ProofArtifact{}, fmt.Errorf("upload proof: %w", err)
	}
	if result.Error.Message != "" {
		return models.ProofArtifact{}, fmt.Errorf("upload proof: %s", result.Error.Message)
	}
	if result.PublicID == "" {
		return models.ProofArtifact{}, fmt.Errorf("upload proof: no public ID returned")
	}
	size := u.Size
	if result.Bytes > 0 {
		size = int64(result.Bytes)
	}
	return models.ProofArtifact{
		URL:          result.SecureURL,
		PublicID:     result.PublicID,
		OriginalName: u.OriginalName,
		MimeType:     u.MimeType,
		Size:         size,
	}, nil
}
