package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 512

// writeQR encodes content as a PNG QR code.
func writeQR(w http.ResponseWriter, content, filename string) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		log.Err(err).Msg("Failed to encode QR code")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if filename != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	}
	_, _ = w.Write(png)
}

// StoreQRHandler serves the QR code of the store's public menu
func (s *Server) StoreQRHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := currentStore(r)
		if !ok || store.PublicURL() == "" {
			http.Error(w, "404 - Not Found", http.StatusNotFound)
			return
		}
		writeQR(w, store.PublicURL(), store.Subdomain+"-qr.png")
	}
}

// TableQRHandler serves the QR code printed on a table
func (s *Server) TableQRHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, _ := currentStore(r)
		id := chi.URLParam(r, "id")
		tables, err := sessionFromContext(r.Context()).API.ListTables(r.Context(), store.ID)
		if err != nil {
			s.backendFailed(w, r, err, RouteDashboardTables)
			return
		}
		for _, t := range tables {
			if t.ID == id {
				writeQR(w, t.QRValue(s.config.GetPublicMenuHost()), "table-"+t.ID+"-qr.png")
				return
			}
		}
		http.Error(w, "404 - Not Found", http.StatusNotFound)
	}
}
