// Package nftstorage stores souvenir artifacts on an nft.storage compatible
// API and returns their content reference.
package nftstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrRejected = errors.New("artifact rejected by storage")

// Client implements core.ArtifactStore.
type Client struct {
	api   string
	token string
	http  *http.Client
}

func New(apiURL, token string) *Client {
	return &Client{
		api:   strings.TrimRight(apiURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Store uploads the artifact as one multipart bundle: the "meta" JSON plus
// the "image" and "properties.sideB" files it references.
func (c *Client) Store(ctx context.Context, a core.Artifact) (string, error) {
	body, contentType, err := encode(a)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api+"/store", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		OK    bool `json:"ok"`
		Value struct {
			IPNFT string `json:"ipnft"`
			URL   string `json:"url"`
		} `json:"value"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode store response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !out.OK || out.Value.IPNFT == "" {
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, out.Error.Message)
	}
	log.Info().Str("module", "nftstorage").Str("ipnft", out.Value.IPNFT).Str("name", a.Name).Msg("artifact stored")
	return out.Value.IPNFT, nil
}

func encode(a core.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	props := make(map[string]any, len(a.Properties)+1)
	for k, v := range a.Properties {
		props[k] = v
	}
	props["sideB"] = nil
	meta, err := json.Marshal(map[string]any{
		"name":        a.Name,
		"description": a.Description,
		"image":       nil,
		"properties":  props,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode meta: %w", err)
	}
	if err := w.WriteField("meta", string(meta)); err != nil {
		return nil, "", err
	}
	if err := attach(w, "image", a.ImagePath); err != nil {
		return nil, "", err
	}
	if a.SideBPath != "" {
		if err := attach(w, "properties.sideB", a.SideBPath); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attach(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
