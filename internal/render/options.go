// Package render turns transcript messages into terminal text: glamour
// markdown for bot replies, labelled lines for line-mode front-ends.
package render

import "github.com/diogo/querychat/internal/config"

// Options configures the markdown renderer
type Options struct {
	// Width is the word wrap column (default: 80)
	Width int

	// Style is a glamour style name ("dark", "light", "notty") or a JSON theme path
	Style string

	EnableEmoji      bool
	PreserveNewLines bool
	TableWrap        bool
	InlineTableLinks bool
}

// DefaultOptions returns the default configuration
func DefaultOptions() Options {
	return FromConfig(config.DefaultMarkdownConfig())
}

// FromConfig builds Options from the markdown section of the config file
func FromConfig(md config.MarkdownConfig) Options {
	style := md.Style
	if style == "" {
		style = "dark"
	}
	return Options{
		Width:            80,
		Style:            style,
		EnableEmoji:      md.EnableEmoji,
		PreserveNewLines: md.PreserveNewLines,
		TableWrap:        md.TableWrap,
		InlineTableLinks: md.InlineTableLinks,
	}
}

// WithWidth returns Options with the specified width
func (o Options) WithWidth(width int) Options {
	if width > 0 {
		o.Width = width
	}
	return o
}

// WithStyle returns Options with the specified style
func (o Options) WithStyle(style string) Options {
	if style != "" {
		o.Style = style
	}
	return o
}
