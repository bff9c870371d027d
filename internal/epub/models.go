package epub

import (
	"slices"
	"strings"
)

// Media types with a fixed role in the container.
const (
	MediaTypeEPUB  = "application/epub+zip"
	MediaTypeOEBPS = "application/oebps-package+xml"
	MediaTypeNCX   = "application/x-dtbncx+xml"
	MediaTypeXHTML = "application/xhtml+xml"
)

// Package is the parsed OPF package document.
type Package struct {
	Path             string // archive path of the package document
	Version          string
	UniqueIdentifier string
	Lang             string
	Dir              string
	Prefix           string // prefix attribute as written

	// Prefixes holds the reserved prefixes and those declared by Prefix.
	Prefixes Prefixes

	Metadata Metadata
	Manifest Manifest
	Spine    Spine
	Guide    []GuideReference

	// Navigation is the navigation document selected for this package.
	Navigation NavDocument

	// NavItemIDs lists every manifest item declaring the nav property,
	// in manifest order.
	NavItemIDs []string

	Warnings []Warning
}

// Metadata holds the bibliographic fields of a package. Repeated elements
// are kept in declaration order.
type Metadata struct {
	Titles       []Title
	Creators     []Creator
	Contributors []Creator
	Subjects     []string
	Descriptions []string
	Publishers   []string
	Dates        []string
	Types        []string
	Formats      []string
	Identifiers  []Identifier
	Sources      []string
	Languages    []string
	Relations    []string
	Coverages    []string
	Rights       []string

	Metas []Meta
	Links []Link

	// Extensions holds unrecognized metadata elements keyed by qualified
	// name (e.g. "calibre:series").
	Extensions map[string][]Element

	// CoverID is the manifest id named by an EPUB 2 <meta name="cover">.
	CoverID string
}

// Title is a dc:title element.
type Title struct {
	Value string
	ID    string
	Lang  string
	Type  string // refined title-type, e.g. "main", "subtitle"
}

// Creator is a dc:creator or dc:contributor element.
type Creator struct {
	Name   string
	Role   string // e.g., "aut" for author, "edt" for editor
	FileAs string
	Lang   string // xml:lang attribute
	ID     string
}

// Identifier is a dc:identifier element.
type Identifier struct {
	Value  string
	ID     string
	Scheme string // opf:scheme or refined identifier-type
}

// Meta is a <meta> element, either the EPUB 2 name/content form or the
// EPUB 3 property form.
type Meta struct {
	ID       string
	Name     string
	Content  string
	Property string
	Refines  string
	Scheme   string
	Lang     string
	Value    string

	Term       Property // expanded Property, zero if its prefix is unknown
	SchemeTerm Property // expanded Scheme when it is prefixed
}

// Link is an EPUB 3 metadata <link> element.
type Link struct {
	ID        string
	Href      string
	Rel       []string
	RelTerms  []Property // Rel expanded, index-aligned
	MediaType string
	Refines   string
}

// Element is an unrecognized metadata element.
type Element struct {
	Name  string // qualified name as written
	Space string // resolved namespace URI
	Value string
	Attrs map[string]string
}

// ManifestItem is an entry of the package manifest.
type ManifestItem struct {
	ID           string
	Href         string // resolved archive path, or the verbatim URL when Remote
	RawHref      string // href attribute as written
	MediaType    string
	Properties   []string
	Terms        []Property // Properties expanded, index-aligned
	Fallback     string
	MediaOverlay string
	Remote       bool
}

// HasProperty reports whether the item declares the given property.
func (m ManifestItem) HasProperty(name string) bool {
	return slices.Contains(m.Properties, name)
}

// HasTerm reports whether one of the item properties expands to p.
func (m ManifestItem) HasTerm(p Property) bool {
	return slices.Contains(m.Terms, p)
}

func (m ManifestItem) clone() ManifestItem {
	m.Properties = slices.Clone(m.Properties)
	m.Terms = slices.Clone(m.Terms)
	return m
}

// Manifest is the id-keyed set of publication resources, kept in
// declaration order.
type Manifest struct {
	items []ManifestItem
	byID  map[string]int
}

func newManifest() Manifest {
	return Manifest{byID: make(map[string]int)}
}

// add appends item and reports false if its id is already taken.
func (m *Manifest) add(item ManifestItem) bool {
	if m.byID == nil {
		m.byID = make(map[string]int)
	}
	if _, dup := m.byID[item.ID]; dup {
		return false
	}
	m.byID[item.ID] = len(m.items)
	m.items = append(m.items, item)
	return true
}

// Len returns the number of items.
func (m Manifest) Len() int { return len(m.items) }

// Item looks an item up by id.
func (m Manifest) Item(id string) (ManifestItem, bool) {
	i, ok := m.byID[id]
	if !ok {
		return ManifestItem{}, false
	}
	return m.items[i].clone(), true
}

// Items returns a copy of the items in declaration order.
func (m Manifest) Items() []ManifestItem {
	out := make([]ManifestItem, len(m.items))
	for i, item := range m.items {
		out[i] = item.clone()
	}
	return out
}

// ByHref looks an item up by resolved path. A fragment is ignored.
func (m Manifest) ByHref(href string) (ManifestItem, bool) {
	href, _ = splitFragment(href)
	for _, item := range m.items {
		if item.Href == href {
			return item.clone(), true
		}
	}
	return ManifestItem{}, false
}

// Spine is the ordered reading order of a package.
type Spine struct {
	Toc                      string // idref of the NCX item, EPUB 2
	PageProgressionDirection string
	Items                    []SpineItem
}

// SpineItem is an itemref of the spine.
type SpineItem struct {
	IDRef      string
	Linear     bool
	Properties []string
}

// GuideReference is an EPUB 2 <guide> reference.
type GuideReference struct {
	Type  string
	Title string
	Href  string // resolved, fragment kept
}

// NavFormat selects the parser for a navigation document.
type NavFormat int

const (
	NavNone NavFormat = iota
	NavNCX
	NavXHTML
)

func (f NavFormat) String() string {
	switch f {
	case NavNCX:
		return "ncx"
	case NavXHTML:
		return "xhtml"
	}
	return "none"
}

// NavDocument references the navigation document of a package.
type NavDocument struct {
	Format NavFormat
	ID     string // manifest id
	Path   string // resolved archive path
}

// Navigation is the parsed navigation document.
type Navigation struct {
	Title     string
	TOC       TocEntry // root entry, no label
	Landmarks []TocEntry
	PageList  []TocEntry
}

// TocEntry is a node of a navigation tree.
type TocEntry struct {
	Label    string
	Href     string // resolved path without fragment, or verbatim URL
	Fragment string // fragment identifier (without #)
	Type     string // epub:type of landmark entries
	Children []TocEntry
}

// Target joins Href and Fragment.
func (e TocEntry) Target() string {
	if e.Fragment == "" {
		return e.Href
	}
	return e.Href + "#" + e.Fragment
}

// Count returns the number of descendants of e.
func (e TocEntry) Count() int {
	n := 0
	for _, c := range e.Children {
		n += 1 + c.Count()
	}
	return n
}

// Walk visits every descendant of e depth-first in document order.
func (e TocEntry) Walk(fn func(entry TocEntry, depth int)) {
	var walk func(TocEntry, int)
	walk = func(n TocEntry, depth int) {
		for _, c := range n.Children {
			fn(c, depth)
			walk(c, depth+1)
		}
	}
	walk(e, 0)
}

func (e TocEntry) clone() TocEntry {
	if e.Children == nil {
		return e
	}
	children := make([]TocEntry, len(e.Children))
	for i, c := range e.Children {
		children[i] = c.clone()
	}
	e.Children = children
	return e
}

func cloneEntries(entries []TocEntry) []TocEntry {
	if entries == nil {
		return nil
	}
	out := make([]TocEntry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	path, fragment, _ = strings.Cut(src, "#")
	return path, fragment
}
