package linkgraph

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/folio/internal/pathutil"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`(!?)\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
)

// Extract returns the link targets referenced by a Markdown body, in order of
// first appearance and without duplicates. Wiki links contribute their target
// with alias and heading removed; local Markdown links contribute the linked
// file's stem.
func Extract(body string) []string {
	type hit struct {
		pos    int
		target string
	}
	var hits []hit

	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(body, -1) {
		if t := wikiTarget(body[m[2]:m[3]]); t != "" {
			hits = append(hits, hit{pos: m[0], target: t})
		}
	}
	for _, m := range mdLinkRe.FindAllStringSubmatchIndex(body, -1) {
		if m[3] > m[2] {
			continue // image embed
		}
		if t := markdownTarget(body[m[4]:m[5]]); t != "" {
			hits = append(hits, hit{pos: m[0], target: t})
		}
	}

	// Two passes found hits independently; restore document order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.target]; ok {
			continue
		}
		seen[h.target] = struct{}{}
		out = append(out, h.target)
	}
	return out
}

func wikiTarget(raw string) string {
	if i := strings.Index(raw, "|"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func markdownTarget(href string) string {
	if strings.HasPrefix(href, "#") || schemeRe.MatchString(href) {
		return ""
	}
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if !pathutil.IsMarkdown(href) {
		return ""
	}
	return strings.TrimSpace(pathutil.Stem(href))
}
