package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var _ ports.MediaService = (*MediaService)(nil)

type MediaService struct {
	uploader ports.MediaUploader
	maxBytes int64
}

func NewMediaService(uploader ports.MediaUploader, maxBytes int64) *MediaService {
	return &MediaService{uploader: uploader, maxBytes: maxBytes}
}

// UploadAvatar envoie l'image au CDN et renvoie l'URL publique à stocker dans le profil
func (s *MediaService) UploadAvatar(ctx context.Context, ownerID string, upload domain.Upload) (*domain.MediaAsset, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := upload.Validate(s.maxBytes); err != nil {
		return nil, err
	}

	asset, err := s.uploader.Upload(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("media upload: %w", err)
	}

	slog.Info("Avatar uploaded", "owner_id", ownerID, "public_id", asset.PublicID, "format", asset.Format)
	return asset, nil
}

func (s *MediaService) OptimizedURL(publicID string, opts domain.ImageOptions) string {
	return s.uploader.OptimizedURL(publicID, opts)
}
