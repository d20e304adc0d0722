package hostedstorage

// Package hostedstorage implements ports.FileStore against a hosted object
// storage HTTP API with public-read buckets.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// Config holds configuration for the hosted object store.
type Config struct {
	// BaseURL is the root of the storage API, e.g. https://storage.example.com.
	BaseURL string
	// Bucket is the public bucket holding user content.
	Bucket string
	// APIKey authorizes writes.
	APIKey string
	// HTTPClient is optional and defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// Store uploads objects and hands back their public URLs.
type Store struct {
	baseURL    string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

// NewStore creates a hosted object store client.
func NewStore(cfg Config) (*Store, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("hosted storage: base URL is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("hosted storage: bucket is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Store{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		bucket:     cfg.Bucket,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

func (s *Store) objectURL(key string) string {
	return s.baseURL + "/object/" + s.bucket + "/" + escapeKey(key)
}

// PublicURL returns the public-read URL for an object key.
func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/object/public/" + s.bucket + "/" + escapeKey(key)
}

// escapeKey escapes each path segment while keeping the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Upload stores the object under key, replacing any previous object, and
// returns its public URL.
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("hosted storage: object key is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key), body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.Internalf("upload failed with status %d", resp.StatusCode)
	}
	return s.PublicURL(key), nil
}

// Remove deletes the object under key. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.Internalf("delete failed with status %d", resp.StatusCode)
	}
	return nil
}
