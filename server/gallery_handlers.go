package server

import (
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxUploadSize = 20 << 20

// GalleryHandler lists the store's gallery images
func (s *Server) GalleryHandler() http.HandlerFunc {
	tmpl := s.mustParsePage("gallery.html")
	return func(w http.ResponseWriter, r *http.Request) {
		store, _ := currentStore(r)
		images, err := sessionFromContext(r.Context()).API.ListGallery(r.Context(), store.ID)
		if err != nil {
			if errors.IsAuthFailure(err) {
				s.backendFailed(w, r, err, RouteDashboard)
				return
			}
			log.Err(err).Str("store", store.ID).Msg("Failed to list gallery")
		}
		s.render(w, http.StatusOK, tmpl, s.pageData(r, map[string]interface{}{
			"Images":     images,
			"LoadFailed": err != nil,
		}))
	}
}

// UploadGalleryHandler forwards the "file" parts of a multipart form to the backend
func (s *Server) UploadGalleryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			redirectWithError(w, r, RouteDashboardGallery, "The upload is too large or malformed")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var uploads []backend.Upload
		for _, fh := range r.MultipartForm.File["file"] {
			f, err := fh.Open()
			if err != nil {
				redirectWithError(w, r, RouteDashboardGallery, "Could not read "+fh.Filename)
				return
			}
			defer f.Close()
			uploads = append(uploads, backend.Upload{Filename: fh.Filename, Content: f})
		}
		if len(uploads) == 0 {
			redirectWithError(w, r, RouteDashboardGallery, "Choose at least one image")
			return
		}

		store, _ := currentStore(r)
		if err := sessionFromContext(r.Context()).API.UploadGallery(r.Context(), store.ID, uploads); err != nil {
			s.backendFailed(w, r, err, RouteDashboardGallery)
			return
		}
		redirectSuccess(w, r, RouteDashboardGallery)
	}
}

func (s *Server) DeleteGalleryImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PostFormValue("key")
		if key == "" {
			redirectWithError(w, r, RouteDashboardGallery, "No image selected")
			return
		}
		if err := sessionFromContext(r.Context()).API.DeleteGalleryImage(r.Context(), key); err != nil {
			s.backendFailed(w, r, err, RouteDashboardGallery)
			return
		}
		redirectSuccess(w, r, RouteDashboardGallery)
	}
}
