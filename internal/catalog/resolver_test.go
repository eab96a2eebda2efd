package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
)

func testConfig(t *testing.T, sourceURL string) *config.Config {
	t.Helper()
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", sourceURL)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestResolveFiltersUnsupportedExtensions(t *testing.T) {
	body := "http://host/a.mp3\nhttp://host/b.exe\n\n# comment\nhttp://host/c.zip\nhttp://host/noext\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	resolver := NewResolver(cfg, zerolog.Nop())

	catalog, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(catalog.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2: %+v", len(catalog.Tracks), catalog.Tracks)
	}
	if catalog.Tracks[0].Ext != "mp3" || catalog.Tracks[1].Ext != "zip" {
		t.Fatalf("unexpected extensions: %+v", catalog.Tracks)
	}
	if !catalog.Tracks[1].IsArchive() {
		t.Error("expected zip reference to be an archive")
	}
	if catalog.Tracks[0].IsArchive() {
		t.Error("mp3 reference must not be an archive")
	}
}

func TestResolveEmptyCatalogIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("http://host/readme.txt\n"))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	resolver := NewResolver(cfg, zerolog.Nop())

	if _, err := resolver.Resolve(context.Background()); err != ErrCatalogEmpty {
		t.Fatalf("got %v, want ErrCatalogEmpty", err)
	}
}

func TestCatalogHashTracksRemoteEdits(t *testing.T) {
	body := "http://host/a.mp3\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	resolver := NewResolver(cfg, zerolog.Nop())

	catalog, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	same, err := resolver.SourceHash(context.Background())
	if err != nil {
		t.Fatalf("source hash: %v", err)
	}
	if catalog.Changed(same) {
		t.Error("unchanged body must not report a change")
	}

	body = "http://host/a.mp3\nhttp://host/b.mp3\n"
	changed, err := resolver.SourceHash(context.Background())
	if err != nil {
		t.Fatalf("source hash: %v", err)
	}
	if !catalog.Changed(changed) {
		t.Error("edited body must report a change")
	}
}

func TestTrackFilenameDecodesURI(t *testing.T) {
	ref := TrackReference{URI: "http://host/dir/My%20Song.MP3", Ext: "mp3"}
	if got := ref.Filename(); got != "my song.mp3" {
		t.Fatalf("filename: got %q, want %q", got, "my song.mp3")
	}
}
