// Package web holds the templates and static assets compiled into the binary.
package web

import "embed"

// Content holds the templates and static directories, named as in
// config.TemplatesLocalDir and config.StaticLocalDir.
//
//go:embed static templates
var Content embed.FS
