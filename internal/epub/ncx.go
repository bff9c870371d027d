package epub

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/yuanying/epubkit/internal/xmlutil"
)

// ncxDocument mirrors the parts of an NCX document that carry navigation.
// The NCX namespace is not matched: lenient producers omit or misspell it.
type ncxDocument struct {
	XMLName  xml.Name     `xml:"ncx"`
	DocTitle ncxText      `xml:"docTitle"`
	NavMap   *ncxNavMap   `xml:"navMap"`
	PageList *ncxPageList `xml:"pageList"`
}

type ncxText struct {
	Text []string `xml:"text"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string        `xml:"id,attr"`
	Labels    []ncxText     `xml:"navLabel"`
	Content   ncxContent    `xml:"content"`
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

type ncxPageList struct {
	PageTargets []ncxPageTarget `xml:"pageTarget"`
}

type ncxPageTarget struct {
	Type    string     `xml:"type,attr"`
	Value   string     `xml:"value,attr"`
	Labels  []ncxText  `xml:"navLabel"`
	Content ncxContent `xml:"content"`
}

// ParseNCX parses an EPUB 2 NCX document located at path.
func ParseNCX(data []byte, path string) (*Navigation, error) {
	if err := xmlutil.CheckWellFormed(data); err != nil {
		return nil, newError(StagePackageParsed, ErrMalformedXML, path, err)
	}
	// The document is well-formed, so a decode failure means the root is
	// not <ncx>.
	var doc ncxDocument
	if err := xmlutil.Decode(data, &doc); err != nil {
		return nil, newError(StagePackageParsed, ErrUnsupportedNavigationFormat, path, err)
	}
	if doc.NavMap == nil {
		return nil, newError(StagePackageParsed, ErrUnsupportedNavigationFormat, path,
			errors.New("no navMap element"))
	}

	nav := &Navigation{Title: firstLabel([]ncxText{doc.DocTitle})}
	nav.TOC.Children = convertNavPoints(doc.NavMap.NavPoints, path)

	if doc.PageList != nil {
		for _, pt := range doc.PageList.PageTargets {
			entry := ncxEntry(firstLabel(pt.Labels), pt.Content.Src, path)
			if entry.Label == "" {
				entry.Label = pt.Value
			}
			entry.Type = pt.Type
			nav.PageList = append(nav.PageList, entry)
		}
	}
	return nav, nil
}

func convertNavPoints(points []ncxNavPoint, docPath string) []TocEntry {
	if len(points) == 0 {
		return nil
	}
	entries := make([]TocEntry, 0, len(points))
	for _, np := range points {
		entry := ncxEntry(firstLabel(np.Labels), np.Content.Src, docPath)
		entry.Children = convertNavPoints(np.NavPoints, docPath)
		entries = append(entries, entry)
	}
	return entries
}

func ncxEntry(label, src, docPath string) TocEntry {
	href, fragment, _ := resolveDocHref(docPath, src)
	return TocEntry{Label: label, Href: href, Fragment: fragment}
}

// firstLabel returns the first non-empty text of the labels.
func firstLabel(labels []ncxText) string {
	for _, l := range labels {
		for _, t := range l.Text {
			if s := collapseSpace(t); s != "" {
				return s
			}
		}
	}
	return ""
}

// collapseSpace trims s and replaces inner whitespace runs with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
