package epub

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/yuanying/epubkit/internal/archive"
)

// Option configures ParseBook.
type Option func(*parseOptions)

type parseOptions struct {
	logger    *slog.Logger
	policy    RootfilePolicy
	strictNav bool
}

// WithLogger sets the logger that receives warnings and stage progress.
// A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *parseOptions) { o.logger = l }
}

// WithRootfilePolicy overrides the choice among the declared rootfiles.
func WithRootfilePolicy(p RootfilePolicy) Option {
	return func(o *parseOptions) { o.policy = p }
}

// WithStrictNavigation turns TOC targets missing from the manifest into
// InconsistentReferences failures instead of warnings.
func WithStrictNavigation() Option {
	return func(o *parseOptions) { o.strictNav = true }
}

// ParseBook runs the whole pipeline over src and returns the first error
// encountered.
func ParseBook(src archive.Source, opts ...Option) (*Book, error) {
	o := parseOptions{policy: PreferOEBPS}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.policy == nil {
		o.policy = PreferOEBPS
	}
	log := o.logger

	warnings := checkMimetype(src)

	container, err := ResolveContainer(src)
	if err != nil {
		return nil, err
	}
	rootfile, ws, err := o.policy(container.Rootfiles)
	if err != nil {
		var perr *Error
		if !errors.As(err, &perr) {
			err = newError(StageStart, ErrNoRootfile, "rootfile policy", err)
		}
		return nil, err
	}
	warnings = append(warnings, ws...)
	log.Debug("container resolved", "rootfile", rootfile.FullPath, "rootfiles", len(container.Rootfiles))

	pkg, err := ParsePackage(src, rootfile.FullPath)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, pkg.Warnings...)
	log.Debug("package parsed",
		"version", pkg.Version,
		"items", pkg.Manifest.Len(),
		"spine", len(pkg.Spine.Items),
		"nav", pkg.Navigation.Format.String())

	// An unresolved toc idref leaves Path empty; Assemble reports it.
	var nav *Navigation
	if pkg.Navigation.Format != NavNone && pkg.Navigation.Path != "" {
		nav, err = ParseNavigation(src, pkg.Navigation)
		if err != nil {
			return nil, err
		}
		log.Debug("navigation resolved", "path", pkg.Navigation.Path, "entries", nav.TOC.Count())
	}

	book, err := Assemble(AssembleInput{
		Package:          pkg,
		Navigation:       nav,
		Warnings:         warnings,
		StrictNavigation: o.strictNav,
	})
	if err != nil {
		return nil, err
	}
	for _, w := range book.warnings {
		log.Warn(w.Message, "kind", string(w.Kind), "subject", w.Subject)
	}
	return book, nil
}

// AssembleInput carries the outputs of the earlier stages.
type AssembleInput struct {
	Package    *Package
	Navigation *Navigation // nil when the package declares no navigation document
	Warnings   []Warning

	StrictNavigation bool
}

// Assemble cross-checks the references between the package and its
// navigation and builds the Book. It is the only place where references
// across documents are validated.
func Assemble(in AssembleInput) (*Book, error) {
	pkg := in.Package
	if pkg == nil {
		return nil, newError(StageNavigationResolved, ErrMissingRequiredElement, "package", nil)
	}
	inconsistent := func(subject, format string, args ...any) error {
		return newError(StageNavigationResolved, ErrInconsistentReferences, subject, fmt.Errorf(format, args...))
	}
	m := pkg.Manifest

	if len(pkg.Spine.Items) == 0 {
		return nil, inconsistent("spine", "spine has no itemref")
	}
	for i, ref := range pkg.Spine.Items {
		if _, ok := m.Item(ref.IDRef); !ok {
			return nil, inconsistent(ref.IDRef, "spine itemref %d does not match a manifest item", i)
		}
	}

	for _, item := range m.items {
		if !item.Remote && !wellFormedPath(item.Href) {
			return nil, inconsistent(item.ID, "manifest href %q is not a valid archive path", item.RawHref)
		}
		if item.Fallback != "" {
			if _, ok := m.Item(item.Fallback); !ok {
				return nil, inconsistent(item.Fallback, "fallback of manifest item %q does not match a manifest item", item.ID)
			}
		}
	}

	if len(pkg.NavItemIDs) > 1 {
		return nil, inconsistent(pkg.NavItemIDs[1], "%d manifest items carry the nav property", len(pkg.NavItemIDs))
	}
	if pkg.Spine.Toc != "" {
		if _, ok := m.Item(pkg.Spine.Toc); !ok {
			return nil, inconsistent(pkg.Spine.Toc, "spine toc does not match a manifest item")
		}
	}
	if pkg.Navigation.Format != NavNone && in.Navigation == nil {
		return nil, inconsistent(pkg.Navigation.ID, "navigation document %q was not resolved", pkg.Navigation.Path)
	}

	warnings := slices.Clone(in.Warnings)
	var nav Navigation
	if in.Navigation != nil {
		nav = cloneNavigation(*in.Navigation)
	} else {
		warnings = append(warnings, Warning{
			Kind:    WarnNoNavigation,
			Subject: pkg.Path,
			Message: "package declares no navigation document, table of contents is empty",
		})
	}

	var dangling error
	nav.TOC.Walk(func(e TocEntry, _ int) {
		if dangling != nil || e.Href == "" || isRemote(e.Href) {
			return
		}
		if _, ok := m.ByHref(e.Href); ok {
			return
		}
		if in.StrictNavigation {
			dangling = inconsistent(e.Href, "toc entry %q targets a resource outside the manifest", e.Label)
			return
		}
		warnings = append(warnings, Warning{
			Kind:    WarnDanglingTocTarget,
			Subject: e.Target(),
			Message: fmt.Sprintf("toc entry %q targets a resource outside the manifest", e.Label),
		})
	})
	if dangling != nil {
		return nil, dangling
	}

	owned := clonePackage(pkg)
	owned.Warnings = nil
	return &Book{
		pkg:      owned,
		nav:      nav,
		warnings: warnings,
		cover:    DetectCover(owned),
	}, nil
}

// Book is an assembled publication. It is immutable: every accessor returns
// a copy, so a Book may be shared between goroutines.
type Book struct {
	pkg      *Package
	nav      Navigation
	warnings []Warning
	cover    *Cover
}

// SpineEntry is a spine itemref resolved to its manifest item.
type SpineEntry struct {
	SpineItem
	Item ManifestItem
}

func (b *Book) Version() string { return b.pkg.Version }

// PackagePath returns the archive path of the package document.
func (b *Book) PackagePath() string { return b.pkg.Path }

// UniqueIdentifier returns the value of the identifier named by the package
// unique-identifier attribute.
func (b *Book) UniqueIdentifier() string {
	if b.pkg.UniqueIdentifier == "" {
		return ""
	}
	for _, id := range b.pkg.Metadata.Identifiers {
		if id.ID == b.pkg.UniqueIdentifier {
			return id.Value
		}
	}
	return ""
}

// PrimaryIdentifier returns the identifier best suited as a catalogue key.
func (b *Book) PrimaryIdentifier() string {
	return b.pkg.Metadata.PrimaryIdentifier(b.pkg.UniqueIdentifier)
}

func (b *Book) Metadata() Metadata { return b.pkg.Metadata.clone() }

func (b *Book) Manifest() []ManifestItem { return b.pkg.Manifest.Items() }

// Item looks a manifest item up by id.
func (b *Book) Item(id string) (ManifestItem, bool) { return b.pkg.Manifest.Item(id) }

// ItemByHref looks a manifest item up by its resolved archive path.
func (b *Book) ItemByHref(href string) (ManifestItem, bool) { return b.pkg.Manifest.ByHref(href) }

// Spine returns the reading order, linear="no" entries included.
func (b *Book) Spine() []SpineEntry {
	out := make([]SpineEntry, 0, len(b.pkg.Spine.Items))
	for _, ref := range b.pkg.Spine.Items {
		item, _ := b.pkg.Manifest.Item(ref.IDRef)
		ref.Properties = slices.Clone(ref.Properties)
		out = append(out, SpineEntry{SpineItem: ref, Item: item})
	}
	return out
}

// LinearSpine returns the default reading order, skipping linear="no".
func (b *Book) LinearSpine() []SpineEntry {
	return slices.DeleteFunc(b.Spine(), func(e SpineEntry) bool { return !e.Linear })
}

// PageProgressionDirection returns the spine page-progression-direction.
func (b *Book) PageProgressionDirection() string { return b.pkg.Spine.PageProgressionDirection }

// NavDocument returns the navigation document the TOC was read from.
func (b *Book) NavDocument() NavDocument { return b.pkg.Navigation }

// NavTitle returns the title declared by the navigation document.
func (b *Book) NavTitle() string { return b.nav.Title }

// TOC returns the root of the table of contents. The root has no label;
// it has no children when the package declares no navigation.
func (b *Book) TOC() TocEntry { return b.nav.TOC.clone() }

func (b *Book) Landmarks() []TocEntry { return cloneEntries(b.nav.Landmarks) }

func (b *Book) PageList() []TocEntry { return cloneEntries(b.nav.PageList) }

func (b *Book) Guide() []GuideReference { return slices.Clone(b.pkg.Guide) }

// Warnings returns the non-fatal conditions observed during the parse.
func (b *Book) Warnings() []Warning { return slices.Clone(b.warnings) }

// Cover returns the detected cover image.
func (b *Book) Cover() (ManifestItem, CoverMethod, bool) {
	if b.cover == nil {
		return ManifestItem{}, "", false
	}
	return b.cover.Item.clone(), b.cover.Method, true
}

// ReadItem reads the bytes of manifest item id from src. Existence in the
// archive is only checked here.
func (b *Book) ReadItem(src archive.Source, id string) ([]byte, error) {
	item, ok := b.pkg.Manifest.Item(id)
	if !ok {
		return nil, newError(StageAssembled, ErrMissingEntry, id, errors.New("no such manifest item"))
	}
	if item.Remote {
		return nil, newError(StageAssembled, ErrMissingEntry, item.Href, errors.New("remote resource"))
	}
	return readEntry(src, item.Href, StageAssembled)
}

func clonePackage(p *Package) *Package {
	out := *p
	out.Metadata = p.Metadata.clone()
	out.Prefixes = maps.Clone(p.Prefixes)
	out.Manifest = newManifest()
	for _, item := range p.Manifest.Items() {
		out.Manifest.add(item)
	}
	out.Spine.Items = make([]SpineItem, len(p.Spine.Items))
	for i, ref := range p.Spine.Items {
		ref.Properties = slices.Clone(ref.Properties)
		out.Spine.Items[i] = ref
	}
	out.Guide = slices.Clone(p.Guide)
	out.NavItemIDs = slices.Clone(p.NavItemIDs)
	out.Warnings = slices.Clone(p.Warnings)
	return &out
}

func cloneNavigation(n Navigation) Navigation {
	n.TOC = n.TOC.clone()
	n.Landmarks = cloneEntries(n.Landmarks)
	n.PageList = cloneEntries(n.PageList)
	return n
}
