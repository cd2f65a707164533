package handler

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*.svg
var static embed.FS

// StaticFS serves the page's bundled images under /static
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
