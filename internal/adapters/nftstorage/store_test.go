package nftstorage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dir := t.TempDir()
	sideA := filepath.Join(dir, "cardA.png")
	sideB := filepath.Join(dir, "cardB.png")
	require.NoError(t, os.WriteFile(sideA, []byte("AAAA"), 0o600))
	require.NoError(t, os.WriteFile(sideB, []byte("BB"), 0o600))

	type seen struct {
		meta  map[string]any
		files map[string]string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		s := seen{files: map[string]string{}}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("meta")), &s.meta))
		for field, hs := range r.MultipartForm.File {
			f, err := hs[0].Open()
			require.NoError(t, err)
			raw, _ := io.ReadAll(f)
			f.Close()
			s.files[field] = hs[0].Filename + ":" + string(raw)
		}
		got <- s
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "value": map[string]string{"ipnft": "bafy123"}})
	}))
	defer srv.Close()

	ref, err := New(srv.URL, "tok").Store(context.Background(), core.Artifact{
		Name:        "Hotseat - Participant #3 Record Card",
		Description: "souvenir",
		ImagePath:   sideA,
		SideBPath:   sideB,
		Properties:  map[string]any{"turn": 3, "causeOfDeath": "lava"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bafy123", ref)

	s := <-got
	assert.Equal(t, "Hotseat - Participant #3 Record Card", s.meta["name"])
	props := s.meta["properties"].(map[string]any)
	assert.EqualValues(t, 3, props["turn"])
	assert.Equal(t, "lava", props["causeOfDeath"])
	assert.Equal(t, map[string]string{
		"image":            "cardA.png:AAAA",
		"properties.sideB": "cardB.png:BB",
	}, s.files)
}

func TestStore_Rejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error":{"message":"bad token"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x").Store(context.Background(), core.Artifact{ImagePath: path})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestStore_MissingImage(t *testing.T) {
	_, err := New("http://unused", "x").Store(context.Background(), core.Artifact{ImagePath: "/nope.png"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
