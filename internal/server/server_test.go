package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/cachestore"
	"github.com/dasch-swiss/sipi-go/internal/config"

	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jpegcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/pngcodec"
)

func writeTestMaster(t *testing.T, dir, name string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 100, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	masterDir := t.TempDir()
	cacheDir := t.TempDir()
	writeTestMaster(t, masterDir, "leaf.png")

	cfg := config.Default()
	cfg.MasterDir = masterDir
	cfg.CacheDir = cacheDir
	cfg.AdminEnabled = true

	idx := cachestore.NewIndex(cfg.MaxCacheBytes, cfg.MaxCacheFiles, cfg.CacheHysteresis)
	writer := cachestore.NewWriter(cacheDir, idx)
	coalescer := cachestore.NewCoalescer()

	return New(cfg, authz.Policy{}, idx, writer, coalescer), masterDir
}

func TestHandleImageServesRenderedDerivative(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/iiif/leaf.png/full/max/0/default.jpg", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty body")
	}
}

func TestHandleImageUnknownIdentifierIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/iiif/missing.png/full/max/0/default.jpg", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleIdentifierOnlyRedirectsToInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/iiif/leaf.png", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc == "" || loc[len(loc)-len("info.json"):] != "info.json" {
		t.Fatalf("expected redirect to info.json, got %q", loc)
	}
}

func TestHandleInfoReturnsDimensions(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/iiif/leaf.png/info.json", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/ld+json" {
		t.Fatalf("expected application/ld+json, got %q", ct)
	}
	body := rec.Body.String()
	if !bytes.Contains([]byte(body), []byte(`"width":64`)) {
		t.Fatalf("expected width 64 in response, got %s", body)
	}
}

func TestAdminListAndPurge(t *testing.T) {
	srv, _ := newTestServer(t)

	get := httptest.NewRequest(http.MethodGet, "/iiif/leaf.png/full/max/0/default.jpg", nil)
	srv.Routes().ServeHTTP(httptest.NewRecorder(), get)

	list := httptest.NewRequest(http.MethodGet, "/admin/cache/", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, list)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from admin list, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"count":1`)) {
		t.Fatalf("expected one cache entry, got %s", rec.Body.String())
	}

	purge := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	purgeRec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(purgeRec, purge)
	if purgeRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from purge, got %d", purgeRec.Code)
	}

	rec2 := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/admin/cache/", nil))
	if !bytes.Contains(rec2.Body.Bytes(), []byte(`"count":0`)) {
		t.Fatalf("expected empty cache after purge, got %s", rec2.Body.String())
	}
}
