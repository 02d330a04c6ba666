package ingest

import (
	"reflect"
	"testing"
)

func TestCleanText(t *testing.T) {
	in := "  Reset the BIOS.\r\nHold the power​button.\r\n\n   Then   restart.  "
	got := CleanText(in)
	want := "reset the bios.\nhold the power button.\nthen restart."
	if got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanText_CollapsesBlankLineRuns(t *testing.T) {
	in := "Heading\n\n\n\nBody text.\n \t\nMore text."
	got := CleanText(in)
	want := "heading\nbody text.\nmore text."
	if got != want {
		t.Errorf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanTitle(t *testing.T) {
	got := CleanTitle("Latitude 7440 Service\nManual | Example Support")
	want := "latitude 7440 service manual"
	if got != want {
		t.Errorf("CleanTitle() = %q, want %q", got, want)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("first line\nsecond sentence. third one! last?")
	want := []string{"first line", "second sentence.", "third one!", "last?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitSentences() = %v, want %v", got, want)
	}
}

func TestBoilerplateStripping(t *testing.T) {
	docs := []string{
		"accept all cookies.\nhow to reset the bios.\npress f2 during boot.",
		"accept all cookies.\nreplacing the battery.\nremove the base cover.",
		"accept all cookies.\nupdating drivers.\nuse the support assistant.",
	}
	boiler := BoilerplateSentences(docs)
	if !boiler["accept all cookies."] {
		t.Fatalf("universal sentence not detected, got %v", boiler)
	}
	if boiler["press f2 during boot."] {
		t.Error("page-specific sentence flagged as boilerplate")
	}

	got := StripBoilerplate(docs[0], boiler)
	want := "how to reset the bios.\npress f2 during boot."
	if got != want {
		t.Errorf("StripBoilerplate() = %q, want %q", got, want)
	}
}

func TestBoilerplate_SingleDocumentIsUntouched(t *testing.T) {
	if got := BoilerplateSentences([]string{"only one document."}); got != nil {
		t.Errorf("BoilerplateSentences() = %v, want nil for a single doc", got)
	}
}
