// Package routes defines HTTP route constants for the dev server.
package routes

const (
	RobotsPath = "/robots.txt"

	// Expansion slot markup for one fragment of a built page, as the
	// browser controller would produce it.
	PartialsExpand = "/partials/expand/{page...}"

	// Renders posted markdown, callouts included, for quick checks while
	// writing.
	PartialsPreview = "/partials/preview"

	SSEPath = "/sse"

	RootPath = "/"
)
