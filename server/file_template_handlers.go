package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/jrsteele09/myoutlet-admin/tokenstore"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"publicURL": func(s restaurants.Store) string { return s.PublicURL() },
	"currencySymbol": func(s restaurants.Store) string { return s.CurrencySymbol() },
}

// ParsePage parses a page template together with the shared layout. The layout goes first so the
// page's own "title" and "head" definitions replace the layout's defaults.
func ParsePage(name string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func (s *Server) mustParsePage(name string) *template.Template {
	tmpl, err := ParsePage(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

// render executes tmpl into a buffer first so a template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, tmpl *template.Template, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render page")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pageData is the model shared by every page.
func (s *Server) pageData(r *http.Request, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"AppName": s.config.GetAppName(),
		"Path":    r.URL.Path,
		"Error":   r.URL.Query().Get("error"),
	}
	if sess := sessionFromContext(r.Context()); sess != nil {
		status := sess.Guard.Status()
		data["SignedIn"] = status.HasToken
		data["HasStore"] = status.HasStoreData
		if claims, ok := sess.Tokens.Claims(); ok {
			data["Owner"] = claims
		}
		if raw, ok := sess.Tokens.User(); ok {
			if user, err := backend.ParseUser([]byte(raw)); err == nil {
				data["User"] = user
			}
		}
		data["StoresFailed"] = sess.Tokens.FetchStatus() == tokenstore.FetchFailed
		if store, ok := sess.Tokens.SessionData().Primary(); ok {
			data["Store"] = store
		}
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
