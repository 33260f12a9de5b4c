package http

import (
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coach/internal/report"
	"github.com/mind-engage/mindengage-coach/internal/session"
	"github.com/mind-engage/mindengage-coach/internal/storage"
)

// ReportBundleHandler returns the assembled report data as JSON.
func ReportBundleHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		v, err := svc.Load(r.Context(), p, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report.Assemble(v))
	}
}

// ReportFileHandler streams the stored report document of a submitted session.
// With ?signed=1 it returns a time-limited download URL instead.
func ReportFileHandler(svc *session.Service, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		v, err := svc.Load(r.Context(), p, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if v.Session.ReportKey == "" {
			http.Error(w, "report not generated", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("signed") == "1" {
			u, err := blobs.SignedURL(r.Context(), v.Session.ReportKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"url": u, "key": v.Session.ReportKey})
			return
		}
		rc, err := blobs.Get(r.Context(), v.Session.ReportKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", report.ContentType(v.Session.ReportKey))
		w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(v.Session.ReportKey)+`"`)
		_, _ = io.Copy(w, rc)
	}
}
