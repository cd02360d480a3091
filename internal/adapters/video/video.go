// Package video uploads finished recordings to the video host and requests
// their transcode.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

var ErrNoUpload = errors.New("video host returned no upload slot")

type Config struct {
	APIURL   string
	MediaURL string
	Key      string
	Secret   string
	// FileWait bounds how long Upload waits for the recording to land on disk.
	FileWaitTries    int
	FileWaitInterval time.Duration
}

// Client implements core.VideoHost.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.FileWaitTries <= 0 {
		cfg.FileWaitTries = 5
	}
	if cfg.FileWaitInterval <= 0 {
		cfg.FileWaitInterval = time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.MediaURL = strings.TrimRight(cfg.MediaURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: 10 * time.Minute}}
}

// Upload sends the file at path and returns the playable reference of the
// transcoded video.
func (c *Client) Upload(ctx context.Context, path, title string) (string, error) {
	logger := log.With().Str("module", "video").Str("path", path).Logger()

	size, err := c.waitForFile(ctx, path)
	if err != nil {
		return "", err
	}
	slot, err := c.presign(ctx)
	if err != nil {
		return "", err
	}
	logger.Info().Str("upload", slot.ID).Int64("bytes", size).Msg("uploading recording")
	if err := c.put(ctx, slot.PresignedURL, path, size); err != nil {
		return "", err
	}
	id, err := c.transcode(ctx, slot.ID, title)
	if err != nil {
		return "", err
	}
	ref := c.cfg.MediaURL + "/" + id
	logger.Info().Str("video", ref).Msg("recording uploaded")
	return ref, nil
}

// waitForFile retries until the recorder has flushed the file.
func (c *Client) waitForFile(ctx context.Context, path string) (int64, error) {
	return backoff.Retry(ctx, func() (int64, error) {
		st, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		if st.IsDir() {
			return 0, backoff.Permanent(fmt.Errorf("%s is a directory", path))
		}
		return st.Size(), nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.FileWaitInterval)),
		backoff.WithMaxTries(uint(c.cfg.FileWaitTries+1)),
		backoff.WithMaxElapsedTime(0),
	)
}

type uploadSlot struct {
	ID           string `json:"id"`
	PresignedURL string `json:"presigned_url"`
}

func (c *Client) presign(ctx context.Context) (uploadSlot, error) {
	var out struct {
		Body struct {
			Uploads []uploadSlot `json:"uploads"`
		} `json:"body"`
	}
	if err := c.api(ctx, "/upload", nil, &out); err != nil {
		return uploadSlot{}, fmt.Errorf("presign: %w", err)
	}
	if len(out.Body.Uploads) == 0 {
		return uploadSlot{}, ErrNoUpload
	}
	return out.Body.Uploads[0], nil
}

func (c *Client) put(ctx context.Context, url, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("put recording: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("put recording: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) transcode(ctx context.Context, uploadID, title string) (string, error) {
	var out struct {
		Body struct {
			Videos []struct {
				ID string `json:"id"`
			} `json:"videos"`
		} `json:"body"`
	}
	in := map[string]string{
		"source_upload_id": uploadID,
		"playback_policy":  "public",
		"file_name":        title,
	}
	if err := c.api(ctx, "/video", in, &out); err != nil {
		return "", fmt.Errorf("transcode: %w", err)
	}
	if len(out.Body.Videos) == 0 {
		return "", fmt.Errorf("transcode: no video returned")
	}
	return out.Body.Videos[0].ID, nil
}

// api POSTs in (if any) to the host API with the service account headers.
func (c *Client) api(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-tva-sa-id", c.cfg.Key)
	req.Header.Set("x-tva-sa-secret", c.cfg.Secret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
