package media

import "testing"

func TestSourceHelpers(t *testing.T) {
	src := Source{Path: "/videos/clip.mkv", Duration: 90.5, Width: 1280, Height: 720}
	if !src.HasDuration() || !src.HasDimensions() {
		t.Fatalf("expected known duration and dimensions: %+v", src)
	}
	if src.Base() != "clip.mkv" {
		t.Fatalf("unexpected base: %q", src.Base())
	}
	if src.Ext() != ".mkv" {
		t.Fatalf("unexpected ext: %q", src.Ext())
	}
}

func TestSourceZeroValuesMeanUnknown(t *testing.T) {
	src := Source{Path: "noext"}
	if src.HasDuration() {
		t.Fatal("zero duration should be unknown")
	}
	if src.HasDimensions() {
		t.Fatal("zero dimensions should be unknown")
	}
	if src.Ext() != "" {
		t.Fatalf("expected empty ext, got %q", src.Ext())
	}
}
