package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/catalog"
	"github.com/friendsincode/marinara/internal/config"
)

func testSetup(t *testing.T, sourceURL string) (*config.Config, *catalog.Selector) {
	t.Helper()
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", sourceURL)
	t.Setenv("MARINARA_TEMP_PATH", t.TempDir())
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg, catalog.NewSelector(cfg)
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestFetchDirectTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not really audio"))
	}))
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	local, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/My%20Track.mp3", Ext: "mp3"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Base(local) != "my track.mp3" {
		t.Errorf("local name: got %q", filepath.Base(local))
	}
	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read fetched file: %v", err)
	}
	if string(data) != "not really audio" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	_, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/gone.mp3", Ext: "mp3"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFetchArchivePicksPlayableEntry(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"songs/track.mod": "mod data",
		"readme.txt":      "ignore me",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	local, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/pack.zip", Ext: "zip"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Base(local) != "track.mod" {
		t.Errorf("got %q, want track.mod", filepath.Base(local))
	}

	// The archive itself and the extraction dir must be gone.
	if _, err := os.Stat(filepath.Join(cfg.TempPath, "pack.zip")); !os.IsNotExist(err) {
		t.Error("archive was not cleaned up")
	}
}

func TestFetchNestedArchive(t *testing.T) {
	inner := zipBytes(t, map[string]string{"tune.xm": "xm data"})
	outer := zipBytes(t, map[string]string{"inner.zip": string(inner)})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(outer)
	}))
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	local, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/outer.zip", Ext: "zip"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Base(local) != "tune.xm" {
		t.Errorf("got %q, want tune.xm", filepath.Base(local))
	}
}

func TestFetchArchiveWithoutPlayableEntries(t *testing.T) {
	archive := zipBytes(t, map[string]string{"readme.txt": "nope"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	_, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/pack.zip", Ext: "zip"})
	if !errors.Is(err, catalog.ErrNoPlayableEntry) {
		t.Fatalf("got %v, want ErrNoPlayableEntry", err)
	}
}

func TestFetchCorruptArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	cfg, sel := testSetup(t, srv.URL+"/list.txt")
	f := New(cfg, sel, zerolog.Nop())

	_, err := f.Fetch(context.Background(), catalog.TrackReference{URI: srv.URL + "/bad.zip", Ext: "zip"})
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("got %v, want ErrArchive", err)
	}
}
