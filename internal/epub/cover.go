package epub

import (
	"path"
	"strings"
)

// CoverMethod names the rule that found a cover image.
type CoverMethod string

const (
	CoverByProperty CoverMethod = "properties"
	CoverByMeta     CoverMethod = "meta"
	CoverByGuide    CoverMethod = "guide"
	CoverByFilename CoverMethod = "filename"
)

// Cover is the detected cover image of a package.
type Cover struct {
	Item   ManifestItem
	Method CoverMethod
}

// DetectCover finds the cover image of pkg. Rules are tried in order:
//  1. an item with properties="cover-image" (EPUB 3)
//  2. the item named by <meta name="cover"> (EPUB 2), by id or by href
//  3. an image item whose href matches a guide reference of type "cover"
//  4. an image item whose basename contains "cover", case-insensitive
//
// SVG images are only accepted by the first two rules. Returns nil if no
// cover is found.
func DetectCover(pkg *Package) *Cover {
	items := pkg.Manifest.items

	for _, item := range items {
		if item.HasProperty("cover-image") {
			return &Cover{Item: item, Method: CoverByProperty}
		}
	}

	if id := pkg.Metadata.CoverID; id != "" {
		if item, ok := pkg.Manifest.Item(id); ok {
			return &Cover{Item: item, Method: CoverByMeta}
		}
		// Some producers put the image path in content instead of the id.
		href, _, _ := resolveHref(dirOf(pkg.Path), id)
		if item, ok := pkg.Manifest.ByHref(href); ok && isImageMediaType(item.MediaType) {
			return &Cover{Item: item, Method: CoverByMeta}
		}
	}

	for _, ref := range pkg.Guide {
		if ref.Type != "cover" {
			continue
		}
		guideHref, _ := splitFragment(ref.Href)
		for _, item := range items {
			if isImageMediaType(item.MediaType) && item.Href == guideHref {
				return &Cover{Item: item, Method: CoverByGuide}
			}
		}
		// A guide cover is usually an XHTML page; keep looking.
	}

	for _, item := range items {
		if !isImageMediaType(item.MediaType) || item.Remote {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return &Cover{Item: item, Method: CoverByFilename}
		}
	}
	return nil
}

// isImageMediaType reports whether mediaType is a raster image.
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
