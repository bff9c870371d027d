package epub

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epubkit/internal/archive"
	"github.com/yuanying/epubkit/internal/xmlutil"
)

// ContentRefs lists the resources referenced by an XHTML content document.
type ContentRefs struct {
	ID          string   // manifest id
	Path        string   // archive path
	Stylesheets []string // resolved stylesheet paths
	Images      []string // resolved img/src and SVG image hrefs
	Missing     []string // references not declared in the manifest
}

// LoadContentRefs reads the content document id from src and collects its
// stylesheet and image references. References with a URL scheme are
// ignored.
func (b *Book) LoadContentRefs(src archive.Source, id string) (*ContentRefs, error) {
	data, err := b.ReadItem(src, id)
	if err != nil {
		return nil, err
	}
	item, _ := b.Item(id)

	data, err = xmlutil.ToUTF8(data)
	if err != nil {
		return nil, newError(StageAssembled, ErrMalformedXML, item.Href, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, newError(StageAssembled, ErrMalformedXML, item.Href, err)
	}

	c := &ContentRefs{ID: id, Path: item.Href}
	baseDir := dirOf(item.Href)
	collect := func(dst *[]string, href string) {
		resolved, _, remote := resolveHref(baseDir, href)
		if remote || resolved == "" {
			return
		}
		*dst = append(*dst, resolved)
		if _, ok := b.ItemByHref(resolved); !ok {
			c.Missing = append(c.Missing, resolved)
		}
	}

	doc.Find("link[rel~='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			collect(&c.Stylesheets, href)
		}
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			collect(&c.Images, src)
		}
	})
	doc.Find("image").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("xlink:href")
		if !ok {
			href, ok = s.Attr("href")
		}
		if ok {
			collect(&c.Images, href)
		}
	})
	return c, nil
}
