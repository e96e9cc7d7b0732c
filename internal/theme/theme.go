// Package theme handles syntax highlighting themes and CSS generation.
package theme

import (
	"html/template"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/debemdeboas/notebook/internal/cache"
	"github.com/debemdeboas/notebook/internal/config"
)

func GetDefaultSyntaxTheme(theme string) string {
	return map[string]string{
		config.LightTheme: config.AppConfig.Theme.SyntaxHighlighting.DefaultLight,
		config.DarkTheme:  config.AppConfig.Theme.SyntaxHighlighting.DefaultDark,
	}[theme]
}

// SiteSyntaxTheme is the chroma style pages are highlighted with.
func SiteSyntaxTheme() string {
	if t := GetDefaultSyntaxTheme(config.AppConfig.Theme.Default); t != "" {
		return t
	}
	if config.AppConfig.Theme.Default == config.LightTheme {
		return config.DefaultLightSyntaxTheme
	}
	return config.DefaultDarkSyntaxTheme
}

func GetSyntaxThemes() []string {
	styleNames := styles.Names()
	slices.Sort(styleNames)
	return styleNames
}

func GetFormatter() *html.Formatter {
	formatter := html.New(
		html.WithClasses(true),
		html.TabWidth(4),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)
	return formatter
}

func GenerateSyntaxCSS(theme string) template.CSS {
	if css, ok := cache.GetSyntaxCSS(theme); ok {
		return css
	}

	var buf strings.Builder
	formatter := GetFormatter()
	style := styles.Get(theme)

	bg := style.Get(chroma.Background)
	if !bg.Colour.IsSet() {
		// Calculate the color of highlighted text given the background color
		// for when the Chroma theme doesn't supply a default
		luminance := (0.299*float64(bg.Background.Red()) +
			0.587*float64(bg.Background.Green()) +
			0.114*float64(bg.Background.Blue())) / 255
		if luminance > 0.5 {
			buf.WriteString(".chroma { color: #181818; }\n")
		}
	}

	formatter.WriteCSS(&buf, style)
	css := template.CSS(buf.String())
	cache.SetSyntaxCSS(theme, css)
	return css
}

// GenerateSiteCSS returns the stylesheet written to static/syntax.css: the
// default theme's rules, with the other scheme behind a media query so the
// static output follows the reader's color scheme.
func GenerateSiteCSS() string {
	dark := config.AppConfig.Theme.SyntaxHighlighting.DefaultDark
	light := config.AppConfig.Theme.SyntaxHighlighting.DefaultLight

	primary, secondary, scheme := dark, light, config.LightTheme
	if config.AppConfig.Theme.Default == config.LightTheme {
		primary, secondary, scheme = light, dark, config.DarkTheme
	}

	var buf strings.Builder
	buf.WriteString(string(GenerateSyntaxCSS(primary)))
	if secondary != "" && secondary != primary {
		buf.WriteString("\n@media (prefers-color-scheme: " + scheme + ") {\n")
		buf.WriteString(string(GenerateSyntaxCSS(secondary)))
		buf.WriteString("}\n")
	}
	return buf.String()
}
