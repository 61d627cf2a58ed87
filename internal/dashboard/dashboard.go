// Package dashboard serves the single-page plant view. It reads snapshots
// from /ws and posts commands to the JSON API of the same origin.
package dashboard

import (
	"embed"
	"net/http"
)

//go:embed index.html
var content embed.FS

// Handler serves index.html.
func Handler() http.Handler {
	page, err := content.ReadFile("index.html")
	if err != nil {
		panic("dashboard: missing index.html: " + err.Error())
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(page)
	})
}
