// Package static provides the embedded query form
package static

import "embed"

// FS contains the query form assets
//
//go:embed all:build/*
var FS embed.FS
