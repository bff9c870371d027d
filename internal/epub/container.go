package epub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/yuanying/epubkit/internal/archive"
	"github.com/yuanying/epubkit/internal/xmlutil"
)

// ContainerPath is the fixed location of the container descriptor.
const ContainerPath = "META-INF/container.xml"

// rootfileExpr selects rootfile elements whatever prefix the container
// namespace is bound to.
var rootfileExpr = xpath.MustCompile(`/*[local-name()='container']/*[local-name()='rootfiles']/*[local-name()='rootfile']`)

// Rootfile is a package document declared by the container.
type Rootfile struct {
	FullPath  string
	MediaType string
}

// Container is the parsed META-INF/container.xml.
type Container struct {
	Rootfiles []Rootfile
}

// ResolveContainer reads and parses the container descriptor of src.
func ResolveContainer(src archive.Source) (*Container, error) {
	data, err := readEntry(src, ContainerPath, StageStart)
	if err != nil {
		return nil, err
	}
	return ParseContainer(data)
}

// ParseContainer parses container descriptor bytes.
func ParseContainer(data []byte) (*Container, error) {
	doc, err := xmlutil.ParseQuery(data)
	if err != nil {
		return nil, newError(StageStart, ErrMalformedXML, ContainerPath, err)
	}

	c := &Container{}
	for _, n := range xmlquery.QuerySelectorAll(doc, rootfileExpr) {
		fullPath := archive.Clean(strings.TrimSpace(n.SelectAttr("full-path")))
		if fullPath == "" {
			continue
		}
		c.Rootfiles = append(c.Rootfiles, Rootfile{
			FullPath:  fullPath,
			MediaType: strings.TrimSpace(n.SelectAttr("media-type")),
		})
	}
	if len(c.Rootfiles) == 0 {
		return nil, newError(StageStart, ErrNoRootfile, ContainerPath, nil)
	}
	return c, nil
}

// RootfilePolicy chooses the package document to parse among the declared
// rootfiles. rootfiles is never empty.
type RootfilePolicy func(rootfiles []Rootfile) (Rootfile, []Warning, error)

// PreferOEBPS picks the first rootfile of the OEBPS package media type,
// falling back to the first rootfile with a warning.
func PreferOEBPS(rootfiles []Rootfile) (Rootfile, []Warning, error) {
	var warnings []Warning
	var chosen *Rootfile
	oebps := 0
	for i := range rootfiles {
		if !strings.EqualFold(rootfiles[i].MediaType, MediaTypeOEBPS) {
			continue
		}
		oebps++
		if chosen == nil {
			chosen = &rootfiles[i]
		}
	}

	if chosen == nil {
		rf := rootfiles[0]
		warnings = append(warnings, Warning{
			Kind:    WarnRootfileMediaType,
			Subject: rf.FullPath,
			Message: fmt.Sprintf("no rootfile of type %s, using first rootfile (type %q)", MediaTypeOEBPS, rf.MediaType),
		})
		return rf, warnings, nil
	}
	if oebps > 1 {
		warnings = append(warnings, Warning{
			Kind:    WarnMultipleRenditions,
			Subject: chosen.FullPath,
			Message: fmt.Sprintf("%d renditions declared, using the first", oebps),
		})
	}
	return *chosen, warnings, nil
}

// RootfileAt picks the i-th declared rootfile whatever its media type.
func RootfileAt(i int) RootfilePolicy {
	return func(rootfiles []Rootfile) (Rootfile, []Warning, error) {
		if i < 0 || i >= len(rootfiles) {
			return Rootfile{}, nil, newError(StageStart, ErrNoRootfile,
				fmt.Sprintf("index %d of %d", i, len(rootfiles)), nil)
		}
		return rootfiles[i], nil, nil
	}
}

// checkMimetype verifies the mimetype entry. Problems are warnings only:
// some tools strip or compress it.
func checkMimetype(src archive.Source) []Warning {
	warn := func(msg string) []Warning {
		return []Warning{{Kind: WarnMimetype, Subject: "mimetype", Message: msg}}
	}

	data, err := src.Open("mimetype")
	if errors.Is(err, archive.ErrNotExist) {
		return warn("entry not found")
	}
	if err != nil {
		return warn(err.Error())
	}
	if got := strings.TrimSpace(string(data)); got != MediaTypeEPUB {
		return warn(fmt.Sprintf("content is %q, want %q", got, MediaTypeEPUB))
	}

	if insp, ok := src.(archive.Inspector); ok {
		if info, ok := insp.Stat("mimetype"); ok {
			if info.Index != 0 {
				return warn("not the first entry")
			}
			if !info.Stored {
				return warn("entry is compressed")
			}
		}
	}
	return nil
}

// readEntry reads name from src. Unreadable entries (corrupt, over the
// size limit) are reported as missing too; the cause stays wrapped.
func readEntry(src archive.Source, name string, stage Stage) ([]byte, error) {
	data, err := src.Open(name)
	if err != nil {
		return nil, newError(stage, ErrMissingEntry, name, err)
	}
	return data, nil
}
