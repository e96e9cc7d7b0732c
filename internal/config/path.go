package config

const (
	//? These paths must match the embed directive in package web
	StaticLocalDir = "static"
	StaticURLPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout = "layout.html"
	TemplateIndex  = "index.html"
	TemplatePage   = "page.html"

	// Every page is written as <slug>/index.html.
	PageFile      = "index.html"
	SyntaxCSSFile = "syntax.css"

	MarkdownExt = ".md"

	// Tag listings are written as /tags/<tag>/index.html.
	TagsURLPath = "/tags/"
	FeedFile    = "feed.xml"
)
