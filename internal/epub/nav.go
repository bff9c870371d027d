package epub

import (
	"errors"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/yuanying/epubkit/internal/archive"
	"github.com/yuanying/epubkit/internal/xmlutil"
)

// ParseNavigation reads the navigation document nd from src and parses it
// according to its format.
func ParseNavigation(src archive.Source, nd NavDocument) (*Navigation, error) {
	if nd.Format == NavNone {
		return nil, newError(StagePackageParsed, ErrUnsupportedNavigationFormat, nd.Path,
			errors.New("no navigation document"))
	}
	data, err := readEntry(src, nd.Path, StagePackageParsed)
	if err != nil {
		return nil, err
	}
	switch nd.Format {
	case NavNCX:
		return ParseNCX(data, nd.Path)
	case NavXHTML:
		return ParseNavXHTML(data, nd.Path)
	}
	return nil, newError(StagePackageParsed, ErrUnsupportedNavigationFormat, nd.Path, nil)
}

// ParseNavXHTML parses an EPUB 3 navigation document located at path.
func ParseNavXHTML(data []byte, path string) (*Navigation, error) {
	doc, err := xmlutil.ParseTree(data)
	if err != nil {
		return nil, newError(StagePackageParsed, ErrMalformedXML, path, err)
	}

	var toc, landmarks, pageList *etree.Element
	for _, n := range descendants(doc.Root(), "nav") {
		types := strings.Fields(epubType(n))
		role := strings.TrimSpace(xmlutil.Attr(n, "role"))
		switch {
		case toc == nil && (slices.Contains(types, "toc") || role == "doc-toc"):
			toc = n
		case landmarks == nil && (slices.Contains(types, "landmarks") || role == "doc-landmarks"):
			landmarks = n
		case pageList == nil && (slices.Contains(types, "page-list") || role == "doc-pagelist"):
			pageList = n
		}
	}
	if toc == nil {
		return nil, newError(StagePackageParsed, ErrUnsupportedNavigationFormat, path,
			errors.New("no toc nav element"))
	}

	nav := &Navigation{}
	for _, h := range toc.ChildElements() {
		if isHeading(h) {
			nav.Title = collapseSpace(xmlutil.Text(h))
			break
		}
	}
	if nav.Title == "" {
		if head := firstChild(doc.Root(), "head"); head != nil {
			if title := firstChild(head, "title"); title != nil {
				nav.Title = collapseSpace(xmlutil.Text(title))
			}
		}
	}
	nav.TOC.Children = parseNavList(navList(toc), path)
	if landmarks != nil {
		nav.Landmarks = parseNavList(navList(landmarks), path)
	}
	if pageList != nil {
		nav.PageList = parseNavList(navList(pageList), path)
	}
	return nav, nil
}

// navList returns the top-level list of a nav element.
func navList(nav *etree.Element) *etree.Element {
	if ol := firstChild(nav, "ol"); ol != nil {
		return ol
	}
	if ols := descendants(nav, "ol"); len(ols) > 0 {
		return ols[0]
	}
	return nil
}

func parseNavList(ol *etree.Element, docPath string) []TocEntry {
	if ol == nil {
		return nil
	}
	var entries []TocEntry
	for _, li := range ol.ChildElements() {
		if li.Tag != "li" {
			continue
		}
		var entry TocEntry
		a := firstChild(li, "a")
		if a == nil {
			for _, c := range li.ChildElements() {
				if c.Tag == "ol" {
					continue
				}
				if as := descendants(c, "a"); len(as) > 0 {
					a = as[0]
					break
				}
			}
		}
		switch span := firstChild(li, "span"); {
		case a != nil:
			entry.Label = collapseSpace(xmlutil.Text(a))
			if entry.Label == "" {
				entry.Label = collapseSpace(xmlutil.Attr(a, "title"))
			}
			entry.Href, entry.Fragment, _ = resolveDocHref(docPath, xmlutil.Attr(a, "href"))
			entry.Type = strings.TrimSpace(epubType(a))
		case span != nil:
			entry.Label = collapseSpace(xmlutil.Text(span))
		default:
			entry.Label = leadingText(li)
		}

		if sub := firstChild(li, "ol"); sub != nil {
			entry.Children = parseNavList(sub, docPath)
		}
		entries = append(entries, entry)
	}
	return entries
}

// leadingText collects the text of li that precedes its nested list.
func leadingText(li *etree.Element) string {
	var b strings.Builder
	for _, tok := range li.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			if t.Tag == "ol" {
				return collapseSpace(b.String())
			}
			b.WriteString(xmlutil.Text(t))
		}
	}
	return collapseSpace(b.String())
}

// epubType returns the epub:type attribute of e. Any prefix bound to the
// OPS namespace is accepted, as is an undeclared "epub" prefix.
func epubType(e *etree.Element) string {
	for _, a := range e.Attr {
		if a.Key != "type" || a.Space == "" || a.Space == "xmlns" {
			continue
		}
		if a.Space == "epub" || xmlutil.PrefixURI(e, a.Space) == nsOPS {
			return a.Value
		}
	}
	return ""
}

func isHeading(e *etree.Element) bool {
	return len(e.Tag) == 2 && e.Tag[0] == 'h' && e.Tag[1] >= '1' && e.Tag[1] <= '6'
}

// firstChild returns the first child element of e with local name tag.
func firstChild(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// descendants returns the elements below e with local name tag, in
// document order.
func descendants(e *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			if c.Tag == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}
