package domain

import (
	"errors"
	"strings"
)

var (
	ErrEmptyUpload     = errors.New("upload is empty")
	ErrUploadTooLarge  = errors.New("upload exceeds size limit")
	ErrUnsupportedType = errors.New("only image uploads are supported")
)

// MediaAsset est ce que le Media Collaborator renvoie après upload
type MediaAsset struct {
	PublicID string
	URL      string
	Width    int
	Height   int
	Format   string
}

// Upload est le fichier brut reçu du client
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Validate refuse un upload vide, trop lourd ou qui n'est pas une image
func (u Upload) Validate(maxBytes int64) error {
	if len(u.Data) == 0 {
		return ErrEmptyUpload
	}
	if maxBytes > 0 && int64(len(u.Data)) > maxBytes {
		return ErrUploadTooLarge
	}
	if !strings.HasPrefix(u.ContentType, "image/") {
		return ErrUnsupportedType
	}
	return nil
}

// ImageOptions pilote les transformations d'URL (redimensionnement, format)
type ImageOptions struct {
	Width   int
	Height  int
	Quality int    // 0 = auto
	Format  string // "", "auto", "webp", "jpg", "png"
}
