package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const maxMirrorBytes = 20 << 20

// Client is a minimal object-storage client against a Supabase-style
// storage HTTP API. Uploads are keyed deterministically so mirroring
// the same source URL twice lands on the same object.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bucket     string
	apiKey     string
}

func NewClient(baseURL, bucket string) (*Client, error) {
	apiKey := os.Getenv("STORAGE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("STORAGE_API_KEY environment variable not set")
	}
	if baseURL == "" || bucket == "" {
		return nil, fmt.Errorf("storage base URL and bucket must be configured")
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		apiKey:     apiKey,
	}, nil
}

// Upload writes an object and returns its public URL. Existing objects
// at the same key are overwritten.
func (c *Client) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", fmt.Errorf("storage upload returned %d: %s", resp.StatusCode, string(body))
	}
	return c.PublicURL(key), nil
}

// PublicURL returns the unauthenticated read URL for an object.
func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, key)
}

// MirrorURL downloads a remote asset and re-uploads it under the
// workspace's media prefix, returning the mirrored public URL. Used
// for attachment media and profile pictures whose provider URLs
// expire.
func (c *Client) MirrorURL(ctx context.Context, workspaceID int64, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching source asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source asset returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMirrorBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxMirrorBytes {
		return "", fmt.Errorf("source asset exceeds %d bytes", maxMirrorBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sum := sha256.Sum256([]byte(sourceURL))
	key := fmt.Sprintf("media/%d/%s%s", workspaceID, hex.EncodeToString(sum[:16]), extensionFor(contentType, sourceURL))

	publicURL, err := c.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", err
	}
	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("mirrored media asset")
	return publicURL, nil
}

func extensionFor(contentType, sourceURL string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "mp4"):
		return ".mp4"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	}
	if ext := path.Ext(strings.SplitN(sourceURL, "?", 2)[0]); len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ""
}
