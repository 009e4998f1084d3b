package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// cachedRenderer serializes use of one TermRenderer, which is not safe for
// concurrent Render calls.
type cachedRenderer struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

var (
	renderersMu sync.Mutex
	renderers   = make(map[Options]*cachedRenderer)
)

// Markdown renders markdown for terminal display. Renderers are built once
// per distinct Options and reused.
func Markdown(content string, opts Options) (string, error) {
	r, err := rendererFor(opts)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tr.Render(content)
}

// MarkdownOrPlain renders markdown, falling back to the input on failure
func MarkdownOrPlain(content string, opts Options) string {
	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func rendererFor(opts Options) (*cachedRenderer, error) {
	renderersMu.Lock()
	defer renderersMu.Unlock()

	if r, ok := renderers[opts]; ok {
		return r, nil
	}

	tr, err := newTermRenderer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	r := &cachedRenderer{tr: tr}
	renderers[opts] = r
	return r, nil
}

func newTermRenderer(opts Options) (*glamour.TermRenderer, error) {
	rendererOpts := []glamour.TermRendererOption{
		glamour.WithStylePath(opts.Style),
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}
	return glamour.NewTermRenderer(rendererOpts...)
}

// ClearCache drops all cached renderers
func ClearCache() {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	renderers = make(map[Options]*cachedRenderer)
}

// CacheSize returns the number of cached renderer configurations
func CacheSize() int {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	return len(renderers)
}
