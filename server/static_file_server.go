package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// StaticHandler serves the embedded assets below /static/.
func StaticHandler() http.Handler {
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to open embedded static assets: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServerFS(assets))
}
