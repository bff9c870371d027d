package epub

import (
	"errors"
	"reflect"
	"testing"
)

const fullOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id"
         xml:lang="en" dir="ltr" prefix="calibre: https://calibre-ebook.com">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"
            xmlns:opf="http://www.idpf.org/2007/opf"
            xmlns:calibre="http://calibre.kovidgoyal.net/2009/metadata">
    <dc:identifier id="pub-id">urn:uuid:0b7a3c36-9f9e-4c43-9f0e-1f3e9f1b2a10</dc:identifier>
    <dc:identifier id="isbn">9780306406157</dc:identifier>
    <meta refines="#isbn" property="identifier-type" scheme="onix:codelist5">15</meta>
    <dc:title id="t1">The Main Title</dc:title>
    <dc:title id="t2">A Subtitle</dc:title>
    <meta refines="#t1" property="title-type">main</meta>
    <meta refines="#t2" property="title-type">subtitle</meta>
    <dc:creator id="c1" opf:file-as="Doe, Jane">Jane Doe</dc:creator>
    <dc:creator id="c2">John Roe</dc:creator>
    <meta refines="#c2" property="role" scheme="marc:relators">ill</meta>
    <meta refines="#c2" property="file-as">Roe, John</meta>
    <dc:contributor opf:role="edt">Ed Itor</dc:contributor>
    <dc:language>en</dc:language>
    <dc:language>ja</dc:language>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Fantasy</dc:subject>
    <dc:publisher>Example Press</dc:publisher>
    <dc:date>2020-05-01</dc:date>
    <dc:description>  A   story. </dc:description>
    <dc:rights>All rights reserved</dc:rights>
    <dc:source>urn:isbn:9780000000002</dc:source>
    <dc:relation>series</dc:relation>
    <dc:coverage>Earth</dc:coverage>
    <dc:type>Text</dc:type>
    <dc:format>application/epub+zip</dc:format>
    <meta name="cover" content="cover-img"/>
    <meta property="dcterms:modified">2024-01-02T03:04:05Z</meta>
    <link rel="record onix" href="meta/onix.xml" media-type="application/xml"/>
    <calibre:series index="2">The Saga</calibre:series>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="ch1" href="Text/chapter%201.xhtml" media-type="application/xhtml+xml" media-overlay="ch1-smil"/>
    <item id="ch1-smil" href="Audio/ch1.smil" media-type="application/smil+xml"/>
    <item id="font" href="https://example.com/font.woff" media-type="font/woff"/>
    <item id="img-webp" href="../shared/pic.webp" media-type="image/webp" fallback="cover-img"/>
  </manifest>
  <spine toc="" page-progression-direction="ltr">
    <itemref idref="ch1" properties="page-spread-left"/>
    <itemref idref="nav" linear="no"/>
    <itemref idref="ch1" linear="yes"/>
  </spine>
  <guide>
    <reference type="cover" title="Cover" href="Text/cover.xhtml#top"/>
  </guide>
</package>`

func TestParsePackageDocument(t *testing.T) {
	pkg, err := ParsePackageDocument([]byte(fullOPF), "OEBPS/content.opf")
	if err != nil {
		t.Fatalf("ParsePackageDocument() error = %v", err)
	}

	if pkg.Version != "3.0" || pkg.UniqueIdentifier != "pub-id" {
		t.Errorf("Version, UniqueIdentifier = %q, %q", pkg.Version, pkg.UniqueIdentifier)
	}
	if pkg.Lang != "en" || pkg.Dir != "ltr" || pkg.Prefix != "calibre: https://calibre-ebook.com" {
		t.Errorf("Lang, Dir, Prefix = %q, %q, %q", pkg.Lang, pkg.Dir, pkg.Prefix)
	}

	t.Run("metadata", func(t *testing.T) {
		md := pkg.Metadata
		wantTitles := []Title{
			{Value: "The Main Title", ID: "t1", Type: "main"},
			{Value: "A Subtitle", ID: "t2", Type: "subtitle"},
		}
		if !reflect.DeepEqual(md.Titles, wantTitles) {
			t.Errorf("Titles = %+v, want %+v", md.Titles, wantTitles)
		}
		wantCreators := []Creator{
			{Name: "Jane Doe", FileAs: "Doe, Jane", ID: "c1"},
			{Name: "John Roe", Role: "ill", FileAs: "Roe, John", ID: "c2"},
		}
		if !reflect.DeepEqual(md.Creators, wantCreators) {
			t.Errorf("Creators = %+v, want %+v", md.Creators, wantCreators)
		}
		if len(md.Contributors) != 1 || md.Contributors[0].Role != "edt" {
			t.Errorf("Contributors = %+v", md.Contributors)
		}
		wantIDs := []Identifier{
			{Value: "urn:uuid:0b7a3c36-9f9e-4c43-9f0e-1f3e9f1b2a10", ID: "pub-id"},
			{Value: "9780306406157", ID: "isbn", Scheme: "15"},
		}
		if !reflect.DeepEqual(md.Identifiers, wantIDs) {
			t.Errorf("Identifiers = %+v, want %+v", md.Identifiers, wantIDs)
		}

		lists := map[string][2][]string{
			"Languages":    {md.Languages, {"en", "ja"}},
			"Subjects":     {md.Subjects, {"Fiction", "Fantasy"}},
			"Publishers":   {md.Publishers, {"Example Press"}},
			"Dates":        {md.Dates, {"2020-05-01"}},
			"Descriptions": {md.Descriptions, {"A   story."}},
			"Rights":       {md.Rights, {"All rights reserved"}},
			"Sources":      {md.Sources, {"urn:isbn:9780000000002"}},
			"Relations":    {md.Relations, {"series"}},
			"Coverages":    {md.Coverages, {"Earth"}},
			"Types":        {md.Types, {"Text"}},
			"Formats":      {md.Formats, {"application/epub+zip"}},
		}
		for name, pair := range lists {
			if !reflect.DeepEqual(pair[0], pair[1]) {
				t.Errorf("%s = %q, want %q", name, pair[0], pair[1])
			}
		}

		if md.CoverID != "cover-img" {
			t.Errorf("CoverID = %q, want %q", md.CoverID, "cover-img")
		}
		if len(md.Links) != 1 || !reflect.DeepEqual(md.Links[0].Rel, []string{"record", "onix"}) {
			t.Errorf("Links = %+v", md.Links)
		}
		if md.Links[0].Href != "meta/onix.xml" {
			t.Errorf("Links[0].Href = %q", md.Links[0].Href)
		}

		series := md.Extensions["calibre:series"]
		if len(series) != 1 {
			t.Fatalf("Extensions[calibre:series] = %+v", md.Extensions)
		}
		want := Element{
			Name:  "calibre:series",
			Space: "http://calibre.kovidgoyal.net/2009/metadata",
			Value: "The Saga",
			Attrs: map[string]string{"index": "2"},
		}
		if !reflect.DeepEqual(series[0], want) {
			t.Errorf("Extensions[calibre:series][0] = %+v, want %+v", series[0], want)
		}
	})

	t.Run("manifest", func(t *testing.T) {
		if pkg.Manifest.Len() != 6 {
			t.Fatalf("Manifest.Len() = %d, want 6", pkg.Manifest.Len())
		}
		var order []string
		for _, item := range pkg.Manifest.Items() {
			order = append(order, item.ID)
		}
		if want := []string{"nav", "cover-img", "ch1", "ch1-smil", "font", "img-webp"}; !reflect.DeepEqual(order, want) {
			t.Errorf("manifest order = %v, want %v", order, want)
		}

		ch1, ok := pkg.Manifest.Item("ch1")
		if !ok {
			t.Fatal("Item(ch1) not found")
		}
		if ch1.Href != "OEBPS/Text/chapter 1.xhtml" || ch1.RawHref != "Text/chapter%201.xhtml" {
			t.Errorf("ch1 Href, RawHref = %q, %q", ch1.Href, ch1.RawHref)
		}
		if ch1.MediaOverlay != "ch1-smil" {
			t.Errorf("ch1 MediaOverlay = %q", ch1.MediaOverlay)
		}

		font, _ := pkg.Manifest.Item("font")
		if !font.Remote || font.Href != "https://example.com/font.woff" {
			t.Errorf("font = %+v, want remote verbatim href", font)
		}
		webp, _ := pkg.Manifest.Item("img-webp")
		if webp.Href != "shared/pic.webp" || webp.Fallback != "cover-img" {
			t.Errorf("img-webp = %+v", webp)
		}
		if item, ok := pkg.Manifest.ByHref("OEBPS/images/cover.jpg#frag"); !ok || item.ID != "cover-img" {
			t.Errorf("ByHref() = %+v, %v", item, ok)
		}
	})

	t.Run("spine", func(t *testing.T) {
		want := []SpineItem{
			{IDRef: "ch1", Linear: true, Properties: []string{"page-spread-left"}},
			{IDRef: "nav", Linear: false},
			{IDRef: "ch1", Linear: true},
		}
		if !reflect.DeepEqual(pkg.Spine.Items, want) {
			t.Errorf("Spine.Items = %+v, want %+v", pkg.Spine.Items, want)
		}
		if pkg.Spine.PageProgressionDirection != "ltr" {
			t.Errorf("PageProgressionDirection = %q", pkg.Spine.PageProgressionDirection)
		}
	})

	t.Run("guide and navigation", func(t *testing.T) {
		want := []GuideReference{{Type: "cover", Title: "Cover", Href: "OEBPS/Text/cover.xhtml#top"}}
		if !reflect.DeepEqual(pkg.Guide, want) {
			t.Errorf("Guide = %+v, want %+v", pkg.Guide, want)
		}
		wantNav := NavDocument{Format: NavXHTML, ID: "nav", Path: "OEBPS/nav.xhtml"}
		if pkg.Navigation != wantNav {
			t.Errorf("Navigation = %+v, want %+v", pkg.Navigation, wantNav)
		}
	})
}

func TestParsePackageDocument_Errors(t *testing.T) {
	tests := []struct {
		name        string
		opf         string
		wantErr     error
		wantSubject string
	}{
		{
			name:        "missing manifest",
			opf:         `<package xmlns="http://www.idpf.org/2007/opf"><metadata/><spine/></package>`,
			wantErr:     ErrMissingRequiredElement,
			wantSubject: "manifest",
		},
		{
			name:        "missing spine",
			opf:         `<package xmlns="http://www.idpf.org/2007/opf"><metadata/><manifest/></package>`,
			wantErr:     ErrMissingRequiredElement,
			wantSubject: "spine",
		},
		{
			name:        "wrong root",
			opf:         `<html/>`,
			wantErr:     ErrMissingRequiredElement,
			wantSubject: "package",
		},
		{
			name: "duplicate id",
			opf: `<package><manifest>
<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
<item id="a" href="b.xhtml" media-type="application/xhtml+xml"/>
</manifest><spine/></package>`,
			wantErr:     ErrDuplicateManifestID,
			wantSubject: "a",
		},
		{
			name:    "item without id",
			opf:     `<package><manifest><item href="a.xhtml"/></manifest><spine/></package>`,
			wantErr: ErrMissingRequiredElement,
		},
		{
			name:        "malformed",
			opf:         `<package><manifest></package>`,
			wantErr:     ErrMalformedXML,
			wantSubject: "content.opf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePackageDocument([]byte(tt.opf), "content.opf")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParsePackageDocument() error = %v, want %v", err, tt.wantErr)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if perr.Stage != StageContainerResolved {
				t.Errorf("Stage = %v, want %v", perr.Stage, StageContainerResolved)
			}
			if tt.wantSubject != "" && perr.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", perr.Subject, tt.wantSubject)
			}
		})
	}
}

func TestParsePackageDocument_IgnoresUnknownAttributes(t *testing.T) {
	opf := `<package xmlns="http://www.idpf.org/2007/opf" version="3.0" future="yes">
<manifest><item id="a" href="a.xhtml" media-type="application/xhtml+xml" shiny="true"/></manifest>
<spine><itemref idref="a" sparkle="1"/></spine></package>`

	pkg, err := ParsePackageDocument([]byte(opf), "content.opf")
	if err != nil {
		t.Fatalf("ParsePackageDocument() error = %v", err)
	}
	if item, ok := pkg.Manifest.Item("a"); !ok || item.Href != "a.xhtml" {
		t.Errorf("Item(a) = %+v, %v", item, ok)
	}
	if pkg.Metadata.Extensions == nil {
		t.Error("Extensions is nil without a metadata element")
	}
}

func TestParsePackageDocument_OEBPS1Metadata(t *testing.T) {
	opf := `<package unique-identifier="id">
<metadata>
  <dc-metadata xmlns:dc="http://purl.org/dc/elements/1.0/">
    <dc:Title>Old Book</dc:Title>
    <dc:Identifier id="id">old-1</dc:Identifier>
  </dc-metadata>
  <x-metadata><meta name="cover" content="c"/></x-metadata>
</metadata>
<manifest><item id="a" href="a.html" media-type="text/x-oeb1-document"/></manifest>
<spine><itemref idref="a"/></spine></package>`

	pkg, err := ParsePackageDocument([]byte(opf), "old.opf")
	if err != nil {
		t.Fatalf("ParsePackageDocument() error = %v", err)
	}
	if got := pkg.Metadata.Title(); got != "Old Book" {
		t.Errorf("Title() = %q, want %q", got, "Old Book")
	}
	if len(pkg.Metadata.Identifiers) != 1 || pkg.Metadata.Identifiers[0].Value != "old-1" {
		t.Errorf("Identifiers = %+v", pkg.Metadata.Identifiers)
	}
	if pkg.Metadata.CoverID != "c" {
		t.Errorf("CoverID = %q, want %q", pkg.Metadata.CoverID, "c")
	}
}

func TestSelectNavigation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		spine    string
		want     NavDocument
		wantWarn bool
	}{
		{
			name: "nav property wins over ncx",
			manifest: `<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="scripted nav"/>`,
			spine: `<spine toc="ncx"><itemref idref="nav"/></spine>`,
			want:  NavDocument{Format: NavXHTML, ID: "nav", Path: "OEBPS/nav.xhtml"},
		},
		{
			name:     "spine toc attribute",
			manifest: `<item id="toc" href="misc/toc.ncx" media-type="application/x-dtbncx+xml"/>`,
			spine:    `<spine toc="toc"><itemref idref="toc"/></spine>`,
			want:     NavDocument{Format: NavNCX, ID: "toc", Path: "OEBPS/misc/toc.ncx"},
		},
		{
			name: "ncx media type fallback",
			manifest: `<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>`,
			spine:    `<spine><itemref idref="a"/></spine>`,
			want:     NavDocument{Format: NavNCX, ID: "ncx", Path: "OEBPS/toc.ncx"},
			wantWarn: true,
		},
		{
			name:     "none",
			manifest: `<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>`,
			spine:    `<spine><itemref idref="a"/></spine>`,
			want:     NavDocument{},
		},
		{
			name:     "unresolved toc idref",
			manifest: `<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>`,
			spine:    `<spine toc="gone"><itemref idref="a"/></spine>`,
			want:     NavDocument{Format: NavNCX, ID: "gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opf := `<package xmlns="http://www.idpf.org/2007/opf"><manifest>` + tt.manifest + `</manifest>` + tt.spine + `</package>`
			pkg, err := ParsePackageDocument([]byte(opf), "OEBPS/content.opf")
			if err != nil {
				t.Fatalf("ParsePackageDocument() error = %v", err)
			}
			if pkg.Navigation != tt.want {
				t.Errorf("Navigation = %+v, want %+v", pkg.Navigation, tt.want)
			}
			if got := hasWarning(pkg.Warnings, WarnNCXFallback); got != tt.wantWarn {
				t.Errorf("NCX fallback warning = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}
