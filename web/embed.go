// Package web holds the remote control page.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// Static returns the page files.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Assets lists the files a page needs offline, relative to the root.
var Assets = []string{"/", "/app.js", "/main.css"}
