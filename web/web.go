// Package web holds the embedded dashboard assets served by the web server.
package web

import "embed"

// Assets contains the dashboard files under dist/.
//
//go:embed dist
var Assets embed.FS
