package epub

import (
	"errors"
	"io/fs"
	"testing"
)

func TestError(t *testing.T) {
	cause := fs.ErrNotExist
	err := error(newError(StagePackageParsed, ErrMissingEntry, "OEBPS/nav.xhtml", cause))

	if want := "missing archive entry: OEBPS/nav.xhtml: file does not exist"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrMissingEntry) {
		t.Error("errors.Is(err, ErrMissingEntry) = false")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is(err, fs.ErrNotExist) = false")
	}
	for _, other := range []error{
		ErrMalformedXML,
		ErrMissingRequiredElement,
		ErrDuplicateManifestID,
		ErrNoRootfile,
		ErrUnsupportedNavigationFormat,
		ErrInconsistentReferences,
	} {
		if errors.Is(err, other) {
			t.Errorf("errors.Is(err, %v) = true", other)
		}
	}

	bare := newError(StageStart, ErrNoRootfile, "", nil)
	if bare.Error() != "no rootfile declared" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "no rootfile declared")
	}
	if bare.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil", bare.Unwrap())
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageStart, "start"},
		{StageContainerResolved, "container-resolved"},
		{StagePackageParsed, "package-parsed"},
		{StageNavigationResolved, "navigation-resolved"},
		{StageAssembled, "assembled"},
		{Stage(42), "stage(42)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tt.stage), got, tt.want)
		}
	}
}

func TestWarning_String(t *testing.T) {
	w := Warning{Kind: WarnDanglingTocTarget, Subject: "a.xhtml#x", Message: "not in manifest"}
	if want := "dangling-toc-target: a.xhtml#x: not in manifest"; w.String() != want {
		t.Errorf("String() = %q, want %q", w.String(), want)
	}
	w = Warning{Kind: WarnNoNavigation, Message: "none"}
	if want := "no-navigation: none"; w.String() != want {
		t.Errorf("String() = %q, want %q", w.String(), want)
	}
}
