package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dasch-swiss/sipi-go/internal/apierr"
	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/cachestore"
	"github.com/dasch-swiss/sipi-go/internal/iiif"
	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/render"
	"github.com/dasch-swiss/sipi-go/webserver"
)

// handleIIIF dispatches the three route shapes spec.md §6 names under
// one prefix: "{id}" (redirect to info.json), "{id}/info.json", and the
// full "{id}/{region}/{size}/{rotation}/{quality}.{format}" transform.
func (s *Server) handleIIIF(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(chi.URLParam(r, "*"), "/")
	if rest == "" {
		s.writeError(w, r, apierr.New(apierr.NotFound, "missing image identifier"))
		return
	}

	if iiif.IsInfoRequest(rest) {
		idSeg := strings.TrimSuffix(strings.TrimSuffix(rest, "info.json"), "/")
		s.handleInfo(w, r, idSeg)
		return
	}

	segments := strings.Split(rest, "/")
	if len(segments) < 5 {
		// Not enough segments for a full IIIF request: treat the whole
		// thing as a bare identifier and redirect to its description.
		target := s.prefix() + "/" + rest + "/info.json"
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	s.handleImage(w, r, rest)
}

func (s *Server) prefix() string {
	if s.cfg.RoutePrefix == "" {
		return "/iiif"
	}
	return s.cfg.RoutePrefix
}

func (s *Server) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + s.prefix()
}

// masterPath resolves an identifier to a file under the configured
// master directory. Rejects any traversal outside that directory —
// this is the one piece of "filesystem layout for master-image
// sharding" the core needs for itself; real sharding schemes are a
// deployment's own external collaborator, per spec.md §1.
func (s *Server) masterPath(id iiif.Identifier) (string, error) {
	clean := filepath.Clean("/" + id.Raw)
	abs := filepath.Join(s.cfg.MasterDir, clean)
	if !strings.HasPrefix(abs, filepath.Clean(s.cfg.MasterDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("server: identifier escapes master directory")
	}
	return abs, nil
}

// resolveMasterPath picks which file on disk to render: the identifier's
// own master, unless the AuthorizationHook returned Substitute with a
// new_master_path, in which case that path is resolved the same way
// (rooted at and confined to MasterDir).
func (s *Server) resolveMasterPath(id iiif.Identifier, authzResult authz.Result) (string, error) {
	if authzResult.Decision == authz.Substitute && authzResult.SubstitutePath != "" {
		clean := filepath.Clean("/" + authzResult.SubstitutePath)
		abs := filepath.Join(s.cfg.MasterDir, clean)
		if !strings.HasPrefix(abs, filepath.Clean(s.cfg.MasterDir)+string(filepath.Separator)) {
			return "", fmt.Errorf("server: substitute master path escapes master directory")
		}
		return abs, nil
	}
	return s.masterPath(id)
}

func (s *Server) loadMaster(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, "", apierr.New(apierr.NotFound, "unknown identifier")
	}
	if err != nil {
		return nil, "", apierr.Wrap(apierr.Internal, "cannot read master", err)
	}
	return data, filepath.Base(path), nil
}

func (s *Server) evaluate(r *http.Request, req iiif.Request) (authz.Result, error) {
	ip, _, _ := strings.Cut(r.RemoteAddr, ":")

	cookies := make(map[string]string, len(r.Cookies()))
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	res, err := s.policy.Evaluate(r.Context(), req, ip, r.Header.Get("Authorization"), r.Header, cookies)
	if err != nil {
		return authz.Result{}, apierr.Wrap(apierr.Internal, "authorization evaluation failed", err)
	}
	return res, nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, idSeg string) {
	id, err := iiif.ParseIdentifier(idSeg)
	if err != nil {
		s.writeError(w, r, apierr.New(apierr.BadRequest, "invalid identifier"))
		return
	}

	fullReq := iiif.Request{ID: id, Quality: iiif.QualityDefault, Format: iiif.FormatJPG}
	authzResult, err := s.evaluate(r, fullReq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.applyAuthz(w, r, authzResult) {
		return
	}

	path, perr := s.resolveMasterPath(id, authzResult)
	if perr != nil {
		s.writeError(w, r, apierr.New(apierr.BadRequest, "invalid identifier"))
		return
	}
	data, _, lerr := s.loadMaster(path)
	if lerr != nil {
		s.writeError(w, r, lerr)
		return
	}

	codec, err := imgcodec.Sniff(data)
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Unsupported, "unrecognized master format", err))
		return
	}

	reader, size := imgcodec.NewReaderAt(data)
	levels, err := codec.Levels(reader, size)
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Internal, "cannot probe master", err))
		return
	}

	width, height, err := codec.LevelSize(reader, size, 0)
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Internal, "cannot probe master", err))
		return
	}

	doc := InfoDocument{
		ID:      s.baseURL(r) + "/" + id.String(),
		Width:   width,
		Height:  height,
		Profile: "http://iiif.io/api/image/2/level2.json",
	}
	for lvl := 0; lvl < levels; lvl++ {
		w2, h2, err := codec.LevelSize(reader, size, lvl)
		if err != nil {
			break
		}
		doc.Sizes = append(doc.Sizes, SizeJSON{Width: w2, Height: h2})
	}

	body, err := doc.MarshalJSON()
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Internal, "cannot build info document", err))
		return
	}

	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, rest string) {
	req, err := iiif.Parse(rest)
	if err != nil {
		s.writeError(w, r, apierr.New(apierr.BadRequest, err.Error()))
		return
	}

	authzResult, err := s.evaluate(r, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.applyAuthz(w, r, authzResult) {
		return
	}

	canonical := iiif.CanonicalURL(s.baseURL(r), req)
	fingerprint, err := iiif.Fingerprint(canonical)
	if err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.Internal, "cannot compute cache key", err))
		return
	}

	if canonical != s.baseURL(r)+"/"+rest {
		w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"canonical\"", canonical))
	}

	masterFile, perr := s.resolveMasterPath(req.ID, authzResult)
	if perr != nil {
		s.writeError(w, r, apierr.New(apierr.BadRequest, "invalid identifier"))
		return
	}

	var masterMtime time.Time
	if info, err := os.Stat(masterFile); err == nil {
		masterMtime = info.ModTime()
	}

	if rec, ok, stale := s.index.LookupFresh(fingerprint, masterMtime); ok {
		if data, err := os.ReadFile(rec.Path); err == nil {
			s.serveDerivative(w, r, rec.ContentType, data)
			return
		}
		// Stale record: the artifact vanished from disk. Fall through
		// to a fresh render rather than failing the request — a cache
		// read error degrades to a miss, per spec.md §7.
		s.index.Remove(fingerprint)
	} else if stale != nil {
		// master_mtime disagreed with the cached record: it was just
		// evicted from the index, so its artifact file is now untracked
		// and must be unlinked directly (best-effort; a missed unlink
		// here is cleaned up by the next RecoverOnStartup scan).
		_ = os.Remove(stale.Path)
	}

	// renderedData/renderedType/renderedResult are filled in only by the
	// caller that actually executes fn. A caller whose Do was shared with
	// an in-flight render receives that render's cache Record instead and
	// reads the committed artifact back from disk below (without the
	// restricted-size Link header, which only the executing caller sets).
	var renderedData []byte
	var renderedType string
	var renderedResult render.Result

	sharedRec, shared, renderErr := s.coalescer.Do(fingerprint, func() (cachestore.Record, error) {
		data, filename, lerr := s.loadMaster(masterFile)
		if lerr != nil {
			return cachestore.Record{}, lerr
		}

		result, rerr := render.Render(data, filename, req, authzResult, s.renderOpts)
		if rerr != nil {
			if re, ok := rerr.(*render.Error); ok && re.Phase == render.PhaseRegion {
				return cachestore.Record{}, apierr.Wrap(apierr.BadRequest, "invalid region", rerr)
			}
			return cachestore.Record{}, apierr.Wrap(apierr.RenderFailed, "rendering failed", rerr)
		}

		renderedData = result.Data
		renderedType = result.ContentType
		renderedResult = result

		rec, werr := s.writer.Commit(fingerprint, "."+string(req.Format), result.ContentType, result.Data, masterFile, masterMtime)
		if werr != nil {
			// Best-effort caching: the render still reaches the client
			// even when the write-through to disk failed, per spec.md §7.
			log.Printf("WRN server: cache write failed for %s: %v", fingerprint, werr)
			return cachestore.Record{}, nil
		}
		return rec, nil
	})
	if renderErr != nil {
		if apiErr, ok := renderErr.(*apierr.Error); ok {
			s.writeError(w, r, apiErr)
		} else {
			s.writeError(w, r, apierr.Wrap(apierr.RenderFailed, "rendering failed", renderErr))
		}
		return
	}

	if shared {
		data, err := os.ReadFile(sharedRec.Path)
		if err != nil {
			s.writeError(w, r, apierr.Wrap(apierr.CacheError, "cannot read shared render", err))
			return
		}
		renderedData, renderedType = data, sharedRec.ContentType
	}

	if renderedResult.RestrictedApplied {
		restrictedReq := req
		restrictedReq.Size = iiif.Size{Kind: iiif.SizeExact, Width: renderedResult.EffectiveWidth, Height: renderedResult.EffectiveHeight}
		restrictedURL := iiif.CanonicalURL(s.baseURL(r), restrictedReq)
		w.Header().Add("Link", fmt.Sprintf("<%s>; rel=\"restricted-size\"", restrictedURL))
	}

	s.serveDerivative(w, r, renderedType, renderedData)
}

func (s *Server) serveDerivative(w http.ResponseWriter, r *http.Request, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Print("WRN server: Write() ", err)
		return
	}
	log.Print("server sent ", r.URL.Path, " ", webserver.IEC64(int64(len(data))))
}

// applyAuthz handles the Deny/Redirect outcomes directly and reports
// whether the caller should continue processing. Allow's watermark and
// restricted_size directives, and Substitute's new_master_path, are
// threaded into the render/master-resolution path instead of being
// handled here.
func (s *Server) applyAuthz(w http.ResponseWriter, r *http.Request, res authz.Result) bool {
	switch res.Decision {
	case authz.Deny:
		s.writeError(w, r, apierr.New(apierr.Forbidden, res.Reason))
		return false
	case authz.Redirect:
		http.Redirect(w, r, res.RedirectTo, http.StatusFound)
		return false
	default:
		return true
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		if apiErr.Cause != nil {
			log.Printf("ERR server: %s: %v", apiErr.Message, apiErr.Cause)
		}
		s.resErr.Write(w, r, apiErr.Status(), apiErr.Message)
		return
	}
	log.Printf("ERR server: unmapped error: %v", err)
	s.resErr.Write(w, r, http.StatusInternalServerError, "internal error")
}
