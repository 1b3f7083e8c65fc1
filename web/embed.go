// Package web embeds the assistant page served by the API server.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/ibexai/web"
//	fs := web.FS() // returns io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed all:static
var static embed.FS

// FS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		log.Fatalf("web.FS: %v", err)
	}
	return sub
}
