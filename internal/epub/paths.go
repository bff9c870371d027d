package epub

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/yuanying/epubkit/internal/archive"
)

// dirOf returns the directory of an archive path, "" for the root.
func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// joinPath joins a base directory with a relative path.
func joinPath(base, rel string) string {
	if base == "" {
		return path.Clean(rel)
	}
	return path.Join(base, rel)
}

// isRemote reports whether href carries a URL scheme.
func isRemote(href string) bool {
	i := strings.Index(href, ":")
	if i <= 0 {
		return false
	}
	for j, r := range href[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// resolveHref resolves href against baseDir. The result is an archive
// path without fragment; hrefs with a URL scheme are returned verbatim
// with remote set.
func resolveHref(baseDir, href string) (resolved, fragment string, remote bool) {
	href = strings.TrimSpace(href)
	if isRemote(href) {
		return href, "", true
	}
	p, fragment := splitFragment(href)
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	if p == "" {
		return "", fragment, false
	}
	// A leading slash is relative to the container root, as in URL resolution.
	if strings.HasPrefix(p, "/") {
		return path.Clean(strings.TrimLeft(p, "/")), fragment, false
	}
	return joinPath(baseDir, p), fragment, false
}

// resolveDocHref resolves an href found in the document at docPath. A
// fragment-only href targets the document itself.
func resolveDocHref(docPath, href string) (resolved, fragment string, remote bool) {
	resolved, fragment, remote = resolveHref(dirOf(docPath), href)
	if !remote && resolved == "" && fragment != "" {
		resolved = docPath
	}
	return resolved, fragment, remote
}

// wellFormedPath reports whether p is usable as an archive path: non-empty,
// valid UTF-8, relative, free of control characters and inside the root.
func wellFormedPath(p string) bool {
	if p == "" || !utf8.ValidString(p) {
		return false
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7F || r == '\\' {
			return false
		}
	}
	return archive.IsSafe(p)
}
