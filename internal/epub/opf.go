package epub

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/yuanying/epubkit/internal/archive"
	"github.com/yuanying/epubkit/internal/xmlutil"
)

const (
	nsDC   = "http://purl.org/dc/elements/1.1/"
	nsDC10 = "http://purl.org/dc/elements/1.0/" // OEBPS 1.x
	nsOPF  = "http://www.idpf.org/2007/opf"
	nsOPS  = "http://www.idpf.org/2007/ops"
)

// dcElements are the Dublin Core elements kept as typed metadata fields.
var dcElements = map[string]bool{
	"title": true, "creator": true, "contributor": true, "subject": true,
	"description": true, "publisher": true, "date": true, "type": true,
	"format": true, "identifier": true, "source": true, "language": true,
	"relation": true, "coverage": true, "rights": true,
}

// ParsePackage reads and parses the package document at rootfilePath.
func ParsePackage(src archive.Source, rootfilePath string) (*Package, error) {
	rootfilePath = archive.Clean(rootfilePath)
	data, err := readEntry(src, rootfilePath, StageContainerResolved)
	if err != nil {
		return nil, err
	}
	return ParsePackageDocument(data, rootfilePath)
}

// ParsePackageDocument parses OPF bytes. rootfilePath is the archive path of
// the document; manifest hrefs are resolved against its directory.
func ParsePackageDocument(data []byte, rootfilePath string) (*Package, error) {
	doc, err := xmlutil.ParseTree(data)
	if err != nil {
		return nil, newError(StageContainerResolved, ErrMalformedXML, rootfilePath, err)
	}

	root := doc.Root()
	if root.Tag != "package" {
		return nil, newError(StageContainerResolved, ErrMissingRequiredElement, "package",
			fmt.Errorf("root element is %s", root.FullTag()))
	}

	pkg := &Package{
		Path:             rootfilePath,
		Version:          strings.TrimSpace(xmlutil.Attr(root, "version")),
		UniqueIdentifier: strings.TrimSpace(xmlutil.Attr(root, "unique-identifier")),
		Lang:             xmlutil.Attr(root, "lang"),
		Dir:              xmlutil.Attr(root, "dir"),
		Prefix:           xmlutil.Attr(root, "prefix"),
	}
	baseDir := dirOf(rootfilePath)

	var metadataElem, manifestElem, spineElem *etree.Element
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "metadata":
			if metadataElem == nil {
				metadataElem = child
			}
		case "manifest":
			if manifestElem == nil {
				manifestElem = child
			}
		case "spine":
			if spineElem == nil {
				spineElem = child
			}
		case "guide":
			pkg.Guide = parseGuide(child, baseDir)
		}
	}

	if manifestElem == nil {
		return nil, newError(StageContainerResolved, ErrMissingRequiredElement, "manifest", nil)
	}
	if spineElem == nil {
		return nil, newError(StageContainerResolved, ErrMissingRequiredElement, "spine", nil)
	}
	if metadataElem != nil {
		pkg.Metadata = parseMetadata(metadataElem)
	} else {
		pkg.Metadata.Extensions = map[string][]Element{}
	}

	manifest, err := parseManifest(manifestElem, baseDir)
	if err != nil {
		return nil, err
	}
	pkg.Manifest = manifest
	var ws []Warning
	pkg.Prefixes, ws = ParsePrefixes(pkg.Prefix)
	pkg.Warnings = append(pkg.Warnings, ws...)
	resolveProperties(pkg)
	pkg.Spine = parseSpine(spineElem)
	pkg.Navigation, pkg.NavItemIDs = selectNavigation(pkg.Manifest, pkg.Spine)
	if pkg.Navigation.Format == NavNCX && pkg.Spine.Toc == "" {
		pkg.Warnings = append(pkg.Warnings, Warning{
			Kind:    WarnNCXFallback,
			Subject: pkg.Navigation.Path,
			Message: "spine has no toc attribute, using the first NCX item of the manifest",
		})
	}

	return pkg, nil
}

// parseMetadata walks <metadata>. Recognized elements are appended to their
// field; everything else lands in Extensions.
func parseMetadata(elem *etree.Element) Metadata {
	md := Metadata{Extensions: map[string][]Element{}}

	var walk func(*etree.Element)
	walk = func(parent *etree.Element) {
		for _, e := range parent.ChildElements() {
			// OEBPS 1.x wraps its metadata in dc-metadata / x-metadata.
			if e.Tag == "dc-metadata" || e.Tag == "x-metadata" {
				walk(e)
				continue
			}
			addMetadataElement(&md, e)
		}
	}
	walk(elem)

	applyRefinements(&md)
	return md
}

func addMetadataElement(md *Metadata, e *etree.Element) {
	ns := xmlutil.NamespaceURI(e)
	name := strings.ToLower(e.Tag)
	value := strings.TrimSpace(xmlutil.Text(e))
	attr := func(key string) string { return strings.TrimSpace(xmlutil.Attr(e, key)) }

	if (ns == nsDC || ns == nsDC10 || (ns == "" && e.Space == "dc")) && dcElements[name] {
		switch name {
		case "title":
			md.Titles = append(md.Titles, Title{Value: value, ID: attr("id"), Lang: attr("lang")})
		case "creator", "contributor":
			c := Creator{Name: value, Role: attr("role"), FileAs: attr("file-as"), Lang: attr("lang"), ID: attr("id")}
			if name == "creator" {
				md.Creators = append(md.Creators, c)
			} else {
				md.Contributors = append(md.Contributors, c)
			}
		case "identifier":
			md.Identifiers = append(md.Identifiers, Identifier{Value: value, ID: attr("id"), Scheme: attr("scheme")})
		case "subject":
			md.Subjects = append(md.Subjects, value)
		case "description":
			md.Descriptions = append(md.Descriptions, value)
		case "publisher":
			md.Publishers = append(md.Publishers, value)
		case "date":
			md.Dates = append(md.Dates, value)
		case "type":
			md.Types = append(md.Types, value)
		case "format":
			md.Formats = append(md.Formats, value)
		case "source":
			md.Sources = append(md.Sources, value)
		case "language":
			md.Languages = append(md.Languages, value)
		case "relation":
			md.Relations = append(md.Relations, value)
		case "coverage":
			md.Coverages = append(md.Coverages, value)
		case "rights":
			md.Rights = append(md.Rights, value)
		}
		return
	}

	if ns == nsOPF || ns == "" {
		switch e.Tag {
		case "meta":
			m := Meta{
				ID:       attr("id"),
				Name:     attr("name"),
				Content:  attr("content"),
				Property: attr("property"),
				Refines:  attr("refines"),
				Scheme:   attr("scheme"),
				Lang:     attr("lang"),
				Value:    value,
			}
			md.Metas = append(md.Metas, m)
			if m.Name == "cover" && m.Content != "" && md.CoverID == "" {
				md.CoverID = m.Content
			}
			return
		case "link":
			md.Links = append(md.Links, Link{
				ID:        attr("id"),
				Href:      attr("href"),
				Rel:       fields(attr("rel")),
				MediaType: attr("media-type"),
				Refines:   attr("refines"),
			})
			return
		}
	}

	ext := Element{Name: e.FullTag(), Space: ns, Value: value}
	if len(e.Attr) > 0 {
		ext.Attrs = make(map[string]string, len(e.Attr))
		for _, a := range e.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				continue
			}
			ext.Attrs[a.FullKey()] = a.Value
		}
	}
	md.Extensions[ext.Name] = append(md.Extensions[ext.Name], ext)
}

// applyRefinements folds EPUB 3 <meta refines="#id"> values into the
// elements they refine.
func applyRefinements(md *Metadata) {
	for _, m := range md.Metas {
		if !strings.HasPrefix(m.Refines, "#") || m.Property == "" {
			continue
		}
		id := strings.TrimPrefix(m.Refines, "#")
		val := m.Value
		if val == "" {
			val = m.Content
		}

		switch m.Property {
		case "role", "file-as":
			for _, list := range [][]Creator{md.Creators, md.Contributors} {
				for i := range list {
					if list[i].ID != id {
						continue
					}
					if m.Property == "role" {
						list[i].Role = val
					} else {
						list[i].FileAs = val
					}
				}
			}
		case "identifier-type":
			for i := range md.Identifiers {
				if md.Identifiers[i].ID == id {
					md.Identifiers[i].Scheme = val
				}
			}
		case "title-type":
			for i := range md.Titles {
				if md.Titles[i].ID == id {
					md.Titles[i].Type = val
				}
			}
		}
	}
}

// parseManifest builds the id-keyed manifest. hrefs are resolved against
// the package document directory.
func parseManifest(elem *etree.Element, baseDir string) (Manifest, error) {
	m := newManifest()
	for _, e := range elem.ChildElements() {
		if e.Tag != "item" {
			continue
		}
		id := strings.TrimSpace(xmlutil.Attr(e, "id"))
		rawHref := xmlutil.Attr(e, "href")
		if id == "" {
			return Manifest{}, newError(StageContainerResolved, ErrMissingRequiredElement,
				fmt.Sprintf("manifest item id (href %q)", rawHref), nil)
		}

		href, _, remote := resolveHref(baseDir, rawHref)
		item := ManifestItem{
			ID:           id,
			Href:         href,
			RawHref:      rawHref,
			MediaType:    strings.TrimSpace(xmlutil.Attr(e, "media-type")),
			Properties:   fields(xmlutil.Attr(e, "properties")),
			Fallback:     strings.TrimSpace(xmlutil.Attr(e, "fallback")),
			MediaOverlay: strings.TrimSpace(xmlutil.Attr(e, "media-overlay")),
			Remote:       remote,
		}
		if !m.add(item) {
			return Manifest{}, newError(StageContainerResolved, ErrDuplicateManifestID, id, nil)
		}
	}
	return m, nil
}

// parseSpine copies the itemrefs verbatim, in order.
func parseSpine(elem *etree.Element) Spine {
	s := Spine{
		Toc:                      strings.TrimSpace(xmlutil.Attr(elem, "toc")),
		PageProgressionDirection: strings.TrimSpace(xmlutil.Attr(elem, "page-progression-direction")),
	}
	for _, e := range elem.ChildElements() {
		if e.Tag != "itemref" {
			continue
		}
		s.Items = append(s.Items, SpineItem{
			IDRef:      strings.TrimSpace(xmlutil.Attr(e, "idref")),
			Linear:     strings.TrimSpace(xmlutil.Attr(e, "linear")) != "no",
			Properties: fields(xmlutil.Attr(e, "properties")),
		})
	}
	return s
}

func parseGuide(elem *etree.Element, baseDir string) []GuideReference {
	var refs []GuideReference
	for _, e := range elem.ChildElements() {
		if e.Tag != "reference" {
			continue
		}
		href, fragment, _ := resolveHref(baseDir, xmlutil.Attr(e, "href"))
		if fragment != "" {
			href += "#" + fragment
		}
		refs = append(refs, GuideReference{
			Type:  strings.TrimSpace(xmlutil.Attr(e, "type")),
			Title: strings.TrimSpace(xmlutil.Attr(e, "title")),
			Href:  href,
		})
	}
	return refs
}

// selectNavigation picks the navigation document once per package:
//  1. the first manifest item with the nav property (EPUB 3),
//  2. the item named by the spine toc attribute (EPUB 2),
//  3. the first manifest item of the NCX media type.
//
// An unresolvable toc idref yields a NavNCX document with an empty path; the
// assembler reports it.
func selectNavigation(m Manifest, s Spine) (NavDocument, []string) {
	var navIDs []string
	for _, item := range m.items {
		if item.HasProperty("nav") {
			navIDs = append(navIDs, item.ID)
		}
	}
	if len(navIDs) > 0 {
		item, _ := m.Item(navIDs[0])
		return NavDocument{Format: NavXHTML, ID: item.ID, Path: item.Href}, navIDs
	}

	if s.Toc != "" {
		item, ok := m.Item(s.Toc)
		if !ok {
			return NavDocument{Format: NavNCX, ID: s.Toc}, nil
		}
		return NavDocument{Format: NavNCX, ID: item.ID, Path: item.Href}, nil
	}

	i := slices.IndexFunc(m.items, func(item ManifestItem) bool {
		return strings.EqualFold(item.MediaType, MediaTypeNCX)
	})
	if i >= 0 {
		return NavDocument{Format: NavNCX, ID: m.items[i].ID, Path: m.items[i].Href}, nil
	}
	return NavDocument{}, nil
}

// fields splits a space-separated attribute value, nil when there is none.
func fields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
