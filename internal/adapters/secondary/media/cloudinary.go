package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

const (
	defaultAPIBase      = "https://api.cloudinary.com"
	defaultDeliveryBase = "https://res.cloudinary.com"
)

var (
	_ ports.MediaUploader = (*CloudinaryClient)(nil)

	ErrNotConfigured = errors.New("cloudinary configuration missing")
)

// uploadResponse : sous-ensemble de la réponse Cloudinary que l'on consomme
type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
}

type CloudinaryClient struct {
	cloudName    string
	uploadPreset string // Preset "unsigned" configuré côté Cloudinary
	apiBase      string
	deliveryBase string
	http         *http.Client
}

type Option func(*CloudinaryClient)

// WithBaseURLs permet de pointer vers un faux serveur (tests)
func WithBaseURLs(apiBase, deliveryBase string) Option {
	return func(c *CloudinaryClient) {
		c.apiBase = strings.TrimRight(apiBase, "/")
		c.deliveryBase = strings.TrimRight(deliveryBase, "/")
	}
}

func NewCloudinaryClient(cloudName, uploadPreset string, opts ...Option) *CloudinaryClient {
	c := &CloudinaryClient{
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		apiBase:      defaultAPIBase,
		deliveryBase: defaultDeliveryBase,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CloudinaryClient) Upload(ctx context.Context, upload domain.Upload) (*domain.MediaAsset, error) {
	if c.cloudName == "" || c.uploadPreset == "" {
		return nil, ErrNotConfigured
	}

	// 1. Corps multipart : file + upload_preset + cloud_name
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	filename := upload.Filename
	if filename == "" {
		filename = "avatar"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("multipart file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("multipart write: %w", err)
	}
	if err := w.WriteField("upload_preset", c.uploadPreset); err != nil {
		return nil, err
	}
	if err := w.WriteField("cloud_name", c.cloudName); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// 2. Appel HTTP
	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", c.apiBase, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cloudinary upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// 3. Mapping réponse -> Domaine
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("cloudinary decode: %w", err)
	}
	if out.SecureURL == "" {
		return nil, errors.New("cloudinary response without secure_url")
	}

	return &domain.MediaAsset{
		PublicID: out.PublicID,
		URL:      out.SecureURL,
		Width:    out.Width,
		Height:   out.Height,
		Format:   out.Format,
	}, nil
}

// OptimizedURL construit une URL de livraison avec transformations (w_, h_, q_, f_)
func (c *CloudinaryClient) OptimizedURL(publicID string, opts domain.ImageOptions) string {
	url := fmt.Sprintf("%s/%s/image/upload", c.deliveryBase, c.cloudName)

	var transformations []string
	if opts.Width > 0 {
		transformations = append(transformations, fmt.Sprintf("w_%d", opts.Width))
	}
	if opts.Height > 0 {
		transformations = append(transformations, fmt.Sprintf("h_%d", opts.Height))
	}
	if opts.Quality > 0 {
		transformations = append(transformations, fmt.Sprintf("q_%d", opts.Quality))
	}
	if opts.Format != "" && opts.Format != "auto" {
		transformations = append(transformations, "f_"+opts.Format)
	}

	if len(transformations) > 0 {
		url += "/" + strings.Join(transformations, ",")
	}
	return url + "/" + publicID
}
