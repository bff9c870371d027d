package epub

import (
	"fmt"
	"strings"
)

// Default vocabularies of unprefixed property values.
const (
	VocabMeta    = "http://idpf.org/epub/vocab/package/meta/#"
	VocabLink    = "http://idpf.org/epub/vocab/package/link/#"
	VocabItem    = "http://idpf.org/epub/vocab/package/item/#"
	VocabItemref = "http://idpf.org/epub/vocab/package/itemref/#"
)

// Reserved prefixes usable without a declaration.
var reservedPrefixes = map[string]string{
	"a11y":      "http://www.idpf.org/epub/vocab/package/a11y/#",
	"dcterms":   "http://purl.org/dc/terms/",
	"marc":      "http://id.loc.gov/vocabulary/",
	"media":     "http://www.idpf.org/epub/vocab/overlays/#",
	"msv":       "http://www.idpf.org/epub/vocab/structure/magazine/#",
	"onix":      "http://www.editeur.org/ONIX/book/codelists/current.html#",
	"prism":     "http://www.prismstandard.org/specifications/3.0/PRISM_CV_Spec_3.0.htm#",
	"rendition": "http://www.idpf.org/vocab/rendition/#",
	"schema":    "http://schema.org/",
	"xsd":       "http://www.w3.org/2001/XMLSchema#",
}

// Property is a property value expanded to its vocabulary URI and
// reference, e.g. dcterms:modified becomes
// {"http://purl.org/dc/terms/", "modified"}.
type Property struct {
	Namespace string
	Reference string
}

// IsZero reports whether p is unset, as for values with an unknown prefix.
func (p Property) IsZero() bool { return p == Property{} }

// URI returns the full IRI of p.
func (p Property) URI() string { return p.Namespace + p.Reference }

func (p Property) String() string { return p.URI() }

var dctermsModified = Property{Namespace: reservedPrefixes["dcterms"], Reference: "modified"}

// Prefixes maps prefix names to vocabulary URIs.
type Prefixes map[string]string

// ParsePrefixes parses a package prefix attribute ("foaf: http://... dbp:
// http://...") on top of the reserved prefixes. Declarations that do not
// follow the name-colon-space-URI form are skipped and reported.
func ParsePrefixes(attr string) (Prefixes, []Warning) {
	p := make(Prefixes, len(reservedPrefixes))
	for name, uri := range reservedPrefixes {
		p[name] = uri
	}

	var ws []Warning
	tokens := strings.Fields(attr)
	for i := 0; i < len(tokens); i++ {
		name, ok := strings.CutSuffix(tokens[i], ":")
		if !ok || name == "" || name == "_" || strings.Contains(name, ":") || i+1 == len(tokens) {
			ws = append(ws, Warning{
				Kind:    WarnPrefix,
				Subject: tokens[i],
				Message: "malformed prefix declaration",
			})
			continue
		}
		i++
		p[name] = tokens[i]
	}
	return p, ws
}

// Resolve expands value against p. Unprefixed values belong to vocab. It
// returns false when the prefix is not declared.
func (p Prefixes) Resolve(value, vocab string) (Property, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Property{}, false
	}
	prefix, ref, ok := strings.Cut(value, ":")
	if !ok {
		return Property{Namespace: vocab, Reference: value}, true
	}
	uri, known := p[prefix]
	if !known || ref == "" {
		return Property{}, false
	}
	return Property{Namespace: uri, Reference: ref}, true
}

// resolveProperties expands the property, scheme, rel and manifest
// properties values of pkg. Values with an undeclared prefix stay
// unresolved and are reported once per prefix.
func resolveProperties(pkg *Package) {
	reported := map[string]bool{}
	resolve := func(value, vocab, where string) Property {
		prop, ok := pkg.Prefixes.Resolve(value, vocab)
		if !ok && value != "" {
			prefix, _, _ := strings.Cut(value, ":")
			if !reported[prefix] {
				reported[prefix] = true
				pkg.Warnings = append(pkg.Warnings, Warning{
					Kind:    WarnPrefix,
					Subject: prefix,
					Message: fmt.Sprintf("undeclared prefix in %s %q", where, value),
				})
			}
		}
		return prop
	}

	md := &pkg.Metadata
	for i := range md.Metas {
		m := &md.Metas[i]
		if m.Property != "" {
			m.Term = resolve(m.Property, VocabMeta, "meta property")
		}
		if m.Scheme != "" && strings.Contains(m.Scheme, ":") {
			m.SchemeTerm = resolve(m.Scheme, "", "meta scheme")
		}
	}
	for i := range md.Links {
		l := &md.Links[i]
		l.RelTerms = nil
		for _, rel := range l.Rel {
			l.RelTerms = append(l.RelTerms, resolve(rel, VocabLink, "link rel"))
		}
	}
	for i := range pkg.Manifest.items {
		item := &pkg.Manifest.items[i]
		item.Terms = nil
		for _, prop := range item.Properties {
			item.Terms = append(item.Terms, resolve(prop, VocabItem, "manifest properties"))
		}
	}
}
