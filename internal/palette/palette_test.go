package palette

import "testing"

func TestColorFor_Idempotent(t *testing.T) {
	a := New([]string{"#111111", "#222222", "#333333"}, nil)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		first := a.ColorFor(id)
		for i := 0; i < 3; i++ {
			if got := a.ColorFor(id); got != first {
				t.Fatalf("ColorFor(%q) = %q on call %d, want %q", id, got, i+2, first)
			}
		}
	}
}

func TestColorFor_PinnedIgnoresOrder(t *testing.T) {
	pinned := map[string]string{"22": "#1E88E5", "36": "#43A047"}
	pal := []string{"#1E88E5", "#43A047", "#E53935"}

	a := New(pal, pinned)
	a.ColorFor("9")
	a.ColorFor("10")
	if got := a.ColorFor("22"); got != "#1E88E5" {
		t.Errorf("pinned 22 = %q, want #1E88E5", got)
	}

	b := New(pal, pinned)
	if got := b.ColorFor("36"); got != "#43A047" {
		t.Errorf("pinned 36 = %q, want #43A047", got)
	}
}

func TestColorFor_SkipsPinnedColors(t *testing.T) {
	a := New([]string{"#A", "#B", "#C"}, map[string]string{"22": "#A"})
	if got := a.ColorFor("5"); got != "#B" {
		t.Errorf("first free color = %q, want #B", got)
	}
	if got := a.ColorFor("6"); got != "#C" {
		t.Errorf("second free color = %q, want #C", got)
	}
}

func TestColorFor_WrapsWhenExhausted(t *testing.T) {
	a := New([]string{"#A", "#B"}, nil)
	if a.ColorFor("1") != "#A" || a.ColorFor("2") != "#B" {
		t.Fatal("palette not handed out in order")
	}
	// two routes assigned, 2 mod 2 = 0
	if got := a.ColorFor("3"); got != "#A" {
		t.Errorf("wrapped color = %q, want #A", got)
	}
	// three routes assigned, 3 mod 2 = 1
	if got := a.ColorFor("4"); got != "#B" {
		t.Errorf("wrapped color = %q, want #B", got)
	}
}

func TestColorFor_EmptyPalette(t *testing.T) {
	a := New(nil, nil)
	if got := a.ColorFor("1"); got != Fallback {
		t.Errorf("ColorFor with empty palette = %q, want %q", got, Fallback)
	}
}
