package epub

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Title returns the first title, preferring one refined as "main".
func (md Metadata) Title() string {
	for _, t := range md.Titles {
		if t.Type == "main" {
			return t.Value
		}
	}
	if len(md.Titles) > 0 {
		return md.Titles[0].Value
	}
	return ""
}

// Authors returns the names of the creators whose role is "aut" or unset.
func (md Metadata) Authors() []string {
	var names []string
	for _, c := range md.Creators {
		if c.Role == "" || c.Role == "aut" {
			names = append(names, c.Name)
		}
	}
	return names
}

// PrimaryIdentifier picks the identifier that best names the publication:
// an identifier with an ISBN scheme, then one that looks like an ISBN, then
// the package unique-identifier, then the first one.
func (md Metadata) PrimaryIdentifier(uniqueID string) string {
	for _, id := range md.Identifiers {
		if strings.EqualFold(id.Scheme, "ISBN") || strings.EqualFold(id.Scheme, "15") {
			return id.Value
		}
	}
	for _, id := range md.Identifiers {
		if id.Kind() == IdentifierISBN {
			return id.Value
		}
	}
	for _, id := range md.Identifiers {
		if uniqueID != "" && id.ID == uniqueID {
			return id.Value
		}
	}
	if len(md.Identifiers) > 0 {
		return md.Identifiers[0].Value
	}
	return ""
}

// LanguageTags parses the dc:language values as BCP 47 tags. Values that do
// not parse are skipped.
func (md Metadata) LanguageTags() []language.Tag {
	var tags []language.Tag
	for _, l := range md.Languages {
		tag, err := language.Parse(l)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Modified returns the first dcterms:modified value that parses as
// RFC 3339. A property written with a custom prefix for the DCMI terms
// vocabulary counts once expanded.
func (md Metadata) Modified() (time.Time, bool) {
	for _, m := range md.Metas {
		if m.Refines != "" {
			continue
		}
		if m.Term != dctermsModified && !(m.Term.IsZero() && m.Property == "dcterms:modified") {
			continue
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(m.Value))
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// clone deep-copies every slice and map of md.
func (md Metadata) clone() Metadata {
	out := md
	out.Titles = slices.Clone(md.Titles)
	out.Creators = slices.Clone(md.Creators)
	out.Contributors = slices.Clone(md.Contributors)
	out.Subjects = slices.Clone(md.Subjects)
	out.Descriptions = slices.Clone(md.Descriptions)
	out.Publishers = slices.Clone(md.Publishers)
	out.Dates = slices.Clone(md.Dates)
	out.Types = slices.Clone(md.Types)
	out.Formats = slices.Clone(md.Formats)
	out.Identifiers = slices.Clone(md.Identifiers)
	out.Sources = slices.Clone(md.Sources)
	out.Languages = slices.Clone(md.Languages)
	out.Relations = slices.Clone(md.Relations)
	out.Coverages = slices.Clone(md.Coverages)
	out.Rights = slices.Clone(md.Rights)
	out.Metas = slices.Clone(md.Metas)
	out.Links = make([]Link, len(md.Links))
	for i, l := range md.Links {
		l.Rel = slices.Clone(l.Rel)
		l.RelTerms = slices.Clone(l.RelTerms)
		out.Links[i] = l
	}
	if md.Links == nil {
		out.Links = nil
	}
	out.Extensions = make(map[string][]Element, len(md.Extensions))
	for k, v := range md.Extensions {
		elems := make([]Element, len(v))
		for i, e := range v {
			e.Attrs = maps.Clone(e.Attrs)
			elems[i] = e
		}
		out.Extensions[k] = elems
	}
	return out
}

// IdentifierKind classifies an identifier value.
type IdentifierKind string

const (
	IdentifierISBN  IdentifierKind = "isbn"
	IdentifierUUID  IdentifierKind = "uuid"
	IdentifierURI   IdentifierKind = "uri"
	IdentifierOther IdentifierKind = "other"
)

// Kind guesses the identifier scheme from its declared scheme and value.
func (id Identifier) Kind() IdentifierKind {
	v := strings.TrimSpace(id.Value)
	lower := strings.ToLower(v)

	switch {
	case strings.EqualFold(id.Scheme, "ISBN"), strings.HasPrefix(lower, "urn:isbn:"), looksLikeISBN(v):
		return IdentifierISBN
	case strings.EqualFold(id.Scheme, "UUID"):
		return IdentifierUUID
	}
	// uuid.Parse accepts the bare, braced and urn:uuid: forms.
	if _, err := uuid.Parse(v); err == nil {
		return IdentifierUUID
	}
	if isRemote(v) {
		return IdentifierURI
	}
	return IdentifierOther
}

// looksLikeISBN reports whether v is a 10 or 13 digit ISBN once hyphens and
// spaces are removed. Check digits are not verified.
func looksLikeISBN(v string) bool {
	var digits []rune
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case r == '-' || r == ' ':
		case (r == 'X' || r == 'x') && len(digits) == 9:
			digits = append(digits, r)
		default:
			return false
		}
	}
	switch len(digits) {
	case 10:
		return true
	case 13:
		prefix := string(digits[:3])
		return prefix == "978" || prefix == "979"
	}
	return false
}
