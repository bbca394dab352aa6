package devices

import (
	"context"
	"testing"
)

func TestInferFacing(t *testing.T) {
	tests := []struct {
		label string
		want  Facing
	}{
		{"", FacingUnknown},
		{"Front Camera", FacingFront},
		{"camera2 1, facing front", FacingFront},
		{"Selfie", FacingFront},
		{"FaceTime HD Camera", FacingFront},
		{"Back Camera", FacingBack},
		{"Rear Wide", FacingBack},
		{"camera2 0, facing back", FacingBack},
		{"Integrated Webcam", FacingUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := InferFacing(tt.label); got != tt.want {
				t.Fatalf("InferFacing(%q) = %s, want %s", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeepsOrderAndUnlabeled(t *testing.T) {
	raw := []CaptureDevice{
		{ID: " a ", Label: "  Back Camera  "},
		{ID: "", Label: "ghost"},
		{ID: "mic", Label: "Microphone", Kind: Kind("audioinput")},
		{ID: "b"},
		{ID: "a", Label: "duplicate"},
		{ID: "c", Label: "Front Camera", Kind: KindVideo},
	}
	got := Normalize(raw)
	if len(got) != 3 {
		t.Fatalf("expected 3 devices, got %+v", got)
	}
	if got[0].ID != "a" || got[0].Label != "Back Camera" || got[0].Facing != FacingBack {
		t.Fatalf("unexpected first device %+v", got[0])
	}
	if got[1].ID != "b" || got[1].Labeled() || got[1].Kind != KindVideo {
		t.Fatalf("expected unlabeled device retained, got %+v", got[1])
	}
	if got[2].Facing != FacingFront {
		t.Fatalf("expected front facing inferred, got %+v", got[2])
	}
}

func TestNormalizeKeepsPlatformFacing(t *testing.T) {
	got := Normalize([]CaptureDevice{{ID: "x", Label: "Front Camera", Facing: FacingBack}})
	if got[0].Facing != FacingBack {
		t.Fatalf("expected platform facing preserved, got %s", got[0].Facing)
	}
}

func TestFoldLabelIsCaseInsensitive(t *testing.T) {
	if FoldLabel("  TELE Camera ") != "tele camera" {
		t.Fatalf("unexpected fold %q", FoldLabel("  TELE Camera "))
	}
	if !ContainsAny(FoldLabel("Périscope ZOOM"), []string{"zoom"}) {
		t.Fatal("expected zoom indicator to match")
	}
	if ContainsAny("main", []string{""}) {
		t.Fatal("empty indicator must never match")
	}
}

func TestStaticCatalogReturnsCopies(t *testing.T) {
	cat := NewStaticCatalog([]CaptureDevice{{ID: "a", Label: "Back"}})
	first, err := cat.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	first[0].Label = "mutated"
	second, _ := cat.Enumerate(context.Background())
	if second[0].Label != "Back" {
		t.Fatalf("expected catalog isolation, got %q", second[0].Label)
	}

	cat.Replace(nil)
	empty, _ := cat.Enumerate(context.Background())
	if len(empty) != 0 {
		t.Fatalf("expected empty catalog, got %+v", empty)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cat.Enumerate(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFind(t *testing.T) {
	devs := []CaptureDevice{{ID: "a"}, {ID: "b", Label: "Main"}}
	if dev, ok := Find(devs, "b"); !ok || dev.Label != "Main" {
		t.Fatalf("unexpected find result %+v %v", dev, ok)
	}
	if _, ok := Find(devs, "z"); ok {
		t.Fatal("expected missing id")
	}
}
