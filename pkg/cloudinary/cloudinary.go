package cloudinary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrAssetNotFound is returned when no raw asset exists for a public ID.
var ErrAssetNotFound = errors.New("cloudinary: asset not found")

const (
	rawAssetType   = api.AssetType("raw")
	uploadDelivery = api.DeliveryType("upload")
	maxDeleteBatch = 100
	maxListResults = 500
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service keeps raw JSON documents as Cloudinary raw assets addressed by public ID.
type Service struct {
	client     *cloudinary.Cloudinary
	folder     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client:     cld,
		folder:     strings.Trim(cfg.Folder, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

func (s *Service) publicID(key string) string {
	if s.folder == "" {
		return key
	}
	return s.folder + "/" + key
}

func (s *Service) keyFromPublicID(publicID string) string {
	if s.folder == "" {
		return publicID
	}
	return strings.TrimPrefix(publicID, s.folder+"/")
}

// Upload stores data under key, replacing any previous version.
func (s *Service) Upload(ctx context.Context, key string, data []byte) error {
	params := uploader.UploadParams{
		PublicID:       s.publicID(key),
		ResourceType:   string(rawAssetType),
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Debug().Str("public_id", result.PublicID).Msg("raw asset uploaded to cloudinary")
	return nil
}

// Download fetches the content stored under key.
func (s *Service) Download(ctx context.Context, key string) ([]byte, error) {
	asset, err := s.client.Admin.Asset(ctx, admin.AssetParams{
		PublicID:     s.publicID(key),
		AssetType:    rawAssetType,
		DeliveryType: uploadDelivery,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up asset: %w", err)
	}
	if asset.Error.Message != "" {
		if strings.Contains(strings.ToLower(asset.Error.Message), "not found") {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to look up asset: %s", asset.Error.Message)
	}
	if asset.SecureURL == "" {
		return nil, ErrAssetNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.SecureURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrAssetNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to download asset: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Service) listParams(prefix, cursor string, limit int) admin.AssetsParams {
	if limit <= 0 || limit > maxListResults {
		limit = maxListResults
	}
	return admin.AssetsParams{
		AssetType:    rawAssetType,
		DeliveryType: string(uploadDelivery),
		Prefix:       s.publicID(prefix),
		MaxResults:   limit,
		NextCursor:   cursor,
	}
}

// List returns the keys stored under prefix, one page at a time.
func (s *Service) List(ctx context.Context, prefix, cursor string, limit int) ([]string, string, error) {
	result, err := s.client.Admin.Assets(ctx, s.listParams(prefix, cursor, limit))
	if err != nil {
		return nil, "", fmt.Errorf("failed to list assets: %w", err)
	}
	if result.Error.Message != "" {
		return nil, "", fmt.Errorf("failed to list assets: %s", result.Error.Message)
	}

	keys := make([]string, 0, len(result.Assets))
	for _, asset := range result.Assets {
		keys = append(keys, s.keyFromPublicID(asset.PublicID))
	}
	return keys, result.NextCursor, nil
}

// Delete removes the assets stored under keys.
func (s *Service) Delete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		publicIDs := make([]string, 0, end-start)
		for _, key := range keys[start:end] {
			publicIDs = append(publicIDs, s.publicID(key))
		}

		result, err := s.client.Admin.DeleteAssets(ctx, admin.DeleteAssetsParams{
			AssetType:    rawAssetType,
			DeliveryType: uploadDelivery,
			PublicIDs:    publicIDs,
		})
		if err != nil {
			return fmt.Errorf("failed to delete assets: %w", err)
		}
		if result.Error.Message != "" {
			return fmt.Errorf("failed to delete assets: %s", result.Error.Message)
		}
	}

	s.logger.Debug().Int("count", len(keys)).Msg("raw assets deleted from cloudinary")
	return nil
}
