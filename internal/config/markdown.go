package config

import "regexp"

const (
	RendererMmark   = "mmark"
	RendererClassic = "classic"
)

var (
	// Code callouts such as `// <<1>>` inside fenced code blocks.
	RegexCodeCallout = regexp.MustCompile(`//\s*<<(\d+)>>`)
)
