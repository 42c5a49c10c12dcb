package server

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/dasch-swiss/sipi-go/internal/apierr"
	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/iiif"
	"github.com/dasch-swiss/sipi-go/timex"
)

// adminIdentifier is the synthetic identifier the policy sees for
// admin-surface requests, letting the same Rego decision document gate
// both image rendering and cache administration.
const adminIdentifier = "__admin__"

// authorizeAdmin runs the same AuthorizationHook the image/info routes
// use, against a synthetic admin request, and reports whether the
// caller should proceed (writing a 403 and returning false on Deny).
func (s *Server) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	req := iiif.Request{ID: iiif.Identifier{Raw: adminIdentifier}}
	res, err := s.evaluate(r, req)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	if res.Decision == authz.Deny {
		s.writeError(w, r, apierr.New(apierr.Forbidden, res.Reason))
		return false
	}
	return true
}

// handleAdminList implements spec.md §6's optional administrative
// surface: cache size, max size, file count, directory path, and the
// entry list, grounded on original_source/src/SipiCache.cpp.
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	records := s.index.Iterate()

	entries := make([]CacheEntryJSON, 0, len(records))
	for _, rec := range records {
		entries = append(entries, CacheEntryJSON{
			Fingerprint: rec.Fingerprint,
			SizeBytes:   rec.SizeBytes,
			ContentType: rec.ContentType,
			LastAccess:  timex.ISO(rec.LastAccess),
			CreatedAt:   timex.ISO(rec.CreatedAt),
		})
	}

	body := CacheListJSON{
		Entries:   entries,
		Count:     len(entries),
		TotalSize: s.index.CurrentBytes(),
		MaxSize:   s.cfg.MaxCacheBytes,
		CacheDir:  s.cfg.CacheDir,
	}

	data, err := body.MarshalJSON()
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Internal, "cannot build cache listing", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleAdminDelete removes one cache entry by fingerprint.
func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	fingerprint := chi.URLParam(r, "fingerprint")
	if _, ok := s.index.Lookup(fingerprint); !ok {
		s.writeError(w, r, apierr.New(apierr.NotFound, "unknown cache entry"))
		return
	}
	if err := s.writer.Purge(fingerprint); err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.CacheError, "cannot delete cache entry", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminPurge clears every cache entry and artifact on disk.
func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	records := s.index.Iterate()
	for _, rec := range records {
		if err := s.writer.Purge(rec.Fingerprint); err != nil {
			// Keep going: a single artifact failing to unlink (already
			// gone, permissions) shouldn't abort the whole purge.
			_ = os.Remove(rec.Path)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
