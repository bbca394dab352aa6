package scoring

import (
	"strings"
	"testing"

	"arcam/internal/config"
	"arcam/internal/devices"
)

func dev(id, label string) devices.CaptureDevice {
	return devices.CaptureDevice{ID: id, Label: label, Kind: devices.KindVideo}
}

func ids(cands []ScoredCandidate) string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Device.ID
	}
	return strings.Join(out, ",")
}

func TestScoreTelephotoFrontScenario(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cands := engine.Score([]devices.CaptureDevice{
		dev("a", "Back Camera 3 Tele 3x"),
		dev("b", "Back Camera 1"),
		dev("c", "Front Camera"),
	})

	if got := ids(cands); got != "b,a" {
		t.Fatalf("unexpected ranking %q", got)
	}
	if cands[0].Score != 100 {
		t.Fatalf("expected b to score 100, got %d", cands[0].Score)
	}
	// -50 tele, -50 3x, +10 generic first, +15 first
	if cands[1].Score != 25 {
		t.Fatalf("expected a to score 25, got %d (%v)", cands[1].Score, cands[1].Hits)
	}
	winner, ok := Winner(cands)
	if !ok || winner.Device.ID != "b" || winner.Strategy != StrategyEnhancedScoring {
		t.Fatalf("unexpected winner %+v ok=%v", winner, ok)
	}
}

func TestScoreMainBeatsTelephoto(t *testing.T) {
	engine := NewEngine(DefaultRules())
	catalogs := [][]devices.CaptureDevice{
		{dev("t", "Telephoto"), dev("m", "Main")},
		{dev("m", "wide angle"), dev("t", "camera zoom")},
		{dev("x", ""), dev("t", "Rear 5x periscope"), dev("m", "Primary rear")},
		{dev("t", "tele"), dev("u", ""), dev("v", ""), dev("m", "main")},
	}
	for _, catalog := range catalogs {
		cands := engine.Score(catalog)
		rank := map[string]int{}
		for i, c := range cands {
			rank[c.Device.ID] = i
		}
		if rank["m"] >= rank["t"] {
			t.Fatalf("expected main above telephoto for %+v, got %s", catalog, ids(cands))
		}
		var mScore, tScore int
		for _, c := range cands {
			switch c.Device.ID {
			case "m":
				mScore = c.Score
			case "t":
				tScore = c.Score
			}
		}
		if mScore <= tScore {
			t.Fatalf("expected strictly higher main score, got m=%d t=%d", mScore, tScore)
		}
	}
}

func TestScoreAllUnlabeledSelectsFirst(t *testing.T) {
	engine := NewEngine(DefaultRules())
	for size := 1; size <= 5; size++ {
		catalog := make([]devices.CaptureDevice, size)
		for i := range catalog {
			catalog[i] = dev(string(rune('a'+i)), "")
		}
		winner, ok := Winner(engine.Score(catalog))
		if !ok || winner.Device.ID != "a" {
			t.Fatalf("size %d: expected first device, got %+v ok=%v", size, winner, ok)
		}
	}
}

func TestScorePositionalWeights(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cands := engine.Score([]devices.CaptureDevice{dev("a", ""), dev("b", ""), dev("c", "")})
	want := map[string]int{"a": 125, "b": 100, "c": 75}
	for _, c := range cands {
		if c.Score != want[c.Device.ID] {
			t.Fatalf("device %s: got %d want %d (%v)", c.Device.ID, c.Score, want[c.Device.ID], c.Hits)
		}
	}

	single := engine.Score([]devices.CaptureDevice{dev("solo", "")})
	if single[0].Score != 110 {
		t.Fatalf("expected lone unlabeled device to score 110, got %d", single[0].Score)
	}
}

func TestScoreUltraWidePenalty(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cands := engine.Score([]devices.CaptureDevice{dev("w", "Rear Wide"), dev("u", "Rear Ultra Wide 0.5x")})
	if cands[0].Device.ID != "w" {
		t.Fatalf("expected wide first, got %s", ids(cands))
	}
	// -50 "5x" (inside "0.5x"), -30 "ultra wide", -30 "0.5x", +20 "wide"
	if cands[1].Score != 10 {
		t.Fatalf("expected ultra wide score 10, got %d (%v)", cands[1].Score, cands[1].Hits)
	}
}

func TestScoreNoConfidentWinner(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cands := engine.Score([]devices.CaptureDevice{dev("t", "Tele zoom 3x periscope")})
	if len(cands) != 1 {
		t.Fatalf("expected one candidate, got %d", len(cands))
	}
	if cands[0].Score > 0 {
		t.Fatalf("expected non-positive score, got %d", cands[0].Score)
	}
	if _, ok := Winner(cands); ok {
		t.Fatal("expected no winner")
	}
}

func TestScoreEmptyAndFrontOnly(t *testing.T) {
	engine := NewEngine(DefaultRules())
	if got := engine.Score(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if got := engine.Score([]devices.CaptureDevice{dev("f", "Selfie"), dev("u", "User Facing")}); len(got) != 0 {
		t.Fatalf("expected front devices excluded, got %+v", got)
	}
	if _, ok := Winner(nil); ok {
		t.Fatal("expected no winner for empty slice")
	}
}

func TestScoreTiesKeepEnumerationOrder(t *testing.T) {
	rules := DefaultRules()
	rules.GenericFirstBonus, rules.FirstBonus, rules.LastPenalty = 0, 0, 0
	engine := NewEngine(rules)
	cands := engine.Score([]devices.CaptureDevice{dev("a", "x"), dev("b", "y"), dev("c", "z"), dev("d", "w")})
	if got := ids(cands); got != "a,b,c,d" {
		t.Fatalf("expected stable order, got %q", got)
	}
}

func TestScoreLabelsCaseInsensitive(t *testing.T) {
	engine := NewEngine(DefaultRules())
	cands := engine.Score([]devices.CaptureDevice{dev("a", "REAR TELEPHOTO"), dev("b", "FRONT"), dev("c", "MAIN")})
	if got := ids(cands); got != "c,a" {
		t.Fatalf("unexpected ranking %q", got)
	}
}

func TestHelpers(t *testing.T) {
	engine := NewEngine(DefaultRules())
	if !engine.IsFront("Front Camera") || engine.IsFront("Back Camera") {
		t.Fatal("unexpected IsFront result")
	}
	if !engine.HasTelephoto("Back Tele") || engine.HasTelephoto("Back Main") {
		t.Fatal("unexpected HasTelephoto result")
	}
}

func TestFromConfigCustomWeights(t *testing.T) {
	s := config.DefaultScoring()
	s.TelephotoPenalty = -500
	s.Telephoto = []string{"Periscope"}
	engine := NewEngine(FromConfig(s))
	cands := engine.Score([]devices.CaptureDevice{dev("p", "periscope"), dev("z", "zoom")})
	if cands[0].Device.ID != "z" {
		t.Fatalf("expected custom rules applied, got %s", ids(cands))
	}
	if cands[1].Score != 100-500+15 {
		t.Fatalf("unexpected periscope score %d", cands[1].Score)
	}
	if !strings.Contains(strings.Join(cands[1].Hits, " "), "telephoto:periscope(-500)") {
		t.Fatalf("expected hit explanation, got %v", cands[1].Hits)
	}
}
