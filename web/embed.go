// Package web provides embedded frontend static files.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var embeddedFiles embed.FS

// GetFileSystem returns the embedded dashboard files as an fs.FS.
// The returned filesystem has the "static" prefix stripped.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(embeddedFiles, "static")
}
