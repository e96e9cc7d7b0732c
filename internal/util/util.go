// Package util provides content hashing, slugs and front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/samber/lo"

	"github.com/mmarkdown/mmark/v2/mast"
)

var ErrNoFrontMatter = errors.New("invalid front matter format")

// ExtendedTitleData is the mmark title block plus the keys the site reads
// from it.
type ExtendedTitleData struct {
	*mast.TitleData
	Tags  []string `toml:"tags"`
	Draft bool     `toml:"draft"`
	Slug  string   `toml:"slug"`

	Consumed int `toml:"-"`
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// Slugify turns a source file name into the page slug, which is also the
// output directory name.
func Slugify(name string) string {
	name = path.Base(name)
	name = strings.TrimSuffix(name, path.Ext(name))
	// "about.html.md" style names
	name = strings.TrimSuffix(name, path.Ext(name))
	return lo.KebabCase(name)
}

func GetFrontMatter(md []byte) (*ExtendedTitleData, error) {
	info, _, err := splitFrontMatter(md)
	return info, err
}

// SplitFrontMatter returns the parsed front matter and the document body
// after it. Documents without front matter are returned unchanged.
func SplitFrontMatter(md []byte) (*ExtendedTitleData, []byte) {
	info, body, err := splitFrontMatter(md)
	if err != nil {
		return nil, md
	}
	return info, body
}

func splitFrontMatter(md []byte) (*ExtendedTitleData, []byte, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delimiter := []byte("%%%")

	if len(md) < 2*len(delimiter) {
		return nil, nil, ErrNoFrontMatter
	}

	first := bytes.Index(md[:len(delimiter)+1], delimiter)
	if first == -1 {
		return nil, nil, ErrNoFrontMatter
	}

	second := bytes.Index(md[first+len(delimiter):], delimiter)
	if second == -1 {
		return nil, nil, ErrNoFrontMatter
	}

	end := second + 2*len(delimiter) + 1
	if end > len(md) {
		return nil, nil, ErrNoFrontMatter
	}

	frontMatter := md[len(delimiter) : second+len(delimiter)]
	info := &ExtendedTitleData{
		TitleData: &mast.TitleData{},
	}

	if _, err := toml.Decode(string(frontMatter), info); err != nil {
		return nil, nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = end

	return info, md[end:], nil
}
