package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// StorageClient handles object storage operations.
type StorageClient struct {
	client *Client
}

// From returns a bucket client.
func (s *StorageClient) From(bucket string) *BucketClient {
	return &BucketClient{client: s.client, bucket: bucket}
}

// BucketClient handles operations within one bucket.
type BucketClient struct {
	client *Client
	bucket string
}

// UploadOptions carry the content type of the uploaded object.
type UploadOptions struct {
	ContentType string
	Upsert      bool
}

// Upload writes an object at path.
func (b *BucketClient) Upload(ctx context.Context, path string, data []byte, opts UploadOptions) error {
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", b.client.baseURL, b.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	b.client.setHeaders(req)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Upsert {
		req.Header.Set("x-upsert", "true")
	}

	resp, err := b.client.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

// Transform describes a server-side image resize applied to a signed URL.
type Transform struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Resize string `json:"resize,omitempty"` // cover, contain, fill
}

// CreateSignedURL mints a time-limited link to a private object, optionally
// with a resize transform. expiresIn is in seconds.
func (b *BucketClient) CreateSignedURL(ctx context.Context, path string, expiresIn int, transform *Transform) (string, error) {
	reqURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", b.client.baseURL, b.bucket, path)

	payload := map[string]any{"expiresIn": expiresIn}
	if transform != nil {
		payload["transform"] = transform
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	b.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.do(req)
	if err != nil {
		return "", err
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.Unmarshal(resp.Body, &signed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return b.client.baseURL + "/storage/v1" + signed.SignedURL, nil
}

// Remove deletes the objects at the given paths.
func (b *BucketClient) Remove(ctx context.Context, paths []string) error {
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s", b.client.baseURL, b.bucket)

	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	b.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

// GetPublicURL returns the public URL for an object in a public bucket.
func (b *BucketClient) GetPublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.client.baseURL, b.bucket, path)
}
