// Package xmlutil turns raw document bytes into XML structures. It strips
// byte-order marks and honours the encoding declared in the XML prolog.
package xmlutil

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// ErrMalformed is wrapped by every parse failure in this package.
var ErrMalformed = errors.New("malformed XML")

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// encodingDecl matches the encoding pseudo-attribute of an XML prolog.
var encodingDecl = regexp.MustCompile(`^<\?xml[^>]*?\sencoding\s*=\s*("[^"]*"|'[^']*')`)

// StripBOM removes a leading UTF-8 byte-order mark.
func StripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// ToUTF8 returns data as UTF-8 without a byte-order mark. A UTF-16
// byte-order mark, or else the encoding declared in the prolog, selects the
// source encoding. When data is transcoded the prolog is rewritten to
// declare UTF-8.
func ToUTF8(data []byte) ([]byte, error) {
	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return data[len(utf8BOM):], nil
	case bytes.HasPrefix(data, utf16LEBOM):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, utf16BEBOM):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	default:
		label := DeclaredEncoding(data)
		if label == "" {
			return data, nil
		}
		e, name := charset.Lookup(label)
		switch {
		case e == nil:
			return nil, fmt.Errorf("%w: unsupported encoding %q", ErrMalformed, label)
		case name == "utf-8":
			return data, nil
		case strings.HasPrefix(name, "utf-16"):
			// A prolog readable as ASCII cannot be UTF-16.
			return withUTF8Declaration(data), nil
		}
		enc = e
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return withUTF8Declaration(out), nil
}

// DeclaredEncoding returns the encoding label of the XML prolog of data,
// or "" when none is declared.
func DeclaredEncoding(data []byte) string {
	m := encodingDecl.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1][1 : len(m[1])-1]))
}

func withUTF8Declaration(data []byte) []byte {
	loc := encodingDecl.FindSubmatchIndex(data)
	if loc == nil {
		return data
	}
	out := make([]byte, 0, len(data))
	out = append(out, data[:loc[2]]...)
	out = append(out, `"UTF-8"`...)
	return append(out, data[loc[3]:]...)
}

// NewDecoder returns a strict decoder over data that accepts the HTML
// named entities (&nbsp;, &mdash;, ...) frequently found in NCX files.
// data is expected to come from ToUTF8.
func NewDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(StripBOM(data)))
	d.CharsetReader = charset.NewReaderLabel
	d.Entity = xml.HTMLEntity
	return d
}

// Decode unmarshals data into v.
func Decode(data []byte, v any) error {
	data, err := ToUTF8(data)
	if err != nil {
		return err
	}
	if err := NewDecoder(data).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// CheckWellFormed walks every token of data and reports the first syntax
// error. A document without a root element is malformed.
func CheckWellFormed(data []byte) error {
	data, err := ToUTF8(data)
	if err != nil {
		return err
	}
	d := NewDecoder(data)
	sawRoot := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
	if !sawRoot {
		return fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return nil
}

// ParseTree reads data into an element tree. Unclosed elements are
// reported even where the tree builder would accept them.
func ParseTree(data []byte) (*etree.Document, error) {
	data, err := ToUTF8(data)
	if err != nil {
		return nil, err
	}
	if err := CheckWellFormed(data); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Entity = xml.HTMLEntity
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return doc, nil
}

// ParseQuery reads data into a node tree suitable for XPath selection.
func ParseQuery(data []byte) (*xmlquery.Node, error) {
	data, err := ToUTF8(data)
	if err != nil {
		return nil, err
	}
	if err := CheckWellFormed(data); err != nil {
		return nil, err
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return doc, nil
}

// LocalAttr returns the value of the attribute whose local name is key,
// whatever its namespace prefix. Namespace declarations are never matched.
func LocalAttr(e *etree.Element, key string) (string, bool) {
	for _, a := range e.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Attr is LocalAttr without the presence flag.
func Attr(e *etree.Element, key string) string {
	v, _ := LocalAttr(e, key)
	return v
}

// NamespaceURI resolves the namespace of e from the xmlns declarations on
// e and its ancestors.
func NamespaceURI(e *etree.Element) string {
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if e.Space == "" && a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
			if e.Space != "" && a.Space == "xmlns" && a.Key == e.Space {
				return a.Value
			}
		}
	}
	return ""
}

// PrefixURI resolves a namespace prefix from the xmlns declarations on e
// and its ancestors.
func PrefixURI(e *etree.Element, prefix string) string {
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// Text returns the concatenated character data below e.
func Text(e *etree.Element) string {
	var b bytes.Buffer
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(e)
	return b.String()
}
