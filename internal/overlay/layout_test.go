package overlay

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnchorFor(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want Anchor
	}{
		{"Top right", TopRight, Anchor{X: 560, Y: 24}},
		{"Top left", TopLeft, Anchor{X: 32, Y: 24}},
		{"Bottom left", BottomLeft, Anchor{X: 32, Y: 420, GrowsUpward: true}},
		{"Bottom right", BottomRight, Anchor{X: 560, Y: 420, GrowsUpward: true}},
		{"Unknown high", Location(7), Anchor{X: 560, Y: 24}},
		{"Unknown negative", Location(-1), Anchor{X: 560, Y: 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnchorFor(tt.loc, 640, 480, DefaultInsets)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AnchorFor() mismatch (-want +got):\n%s", diff)
			}
			if again := AnchorFor(tt.loc, 640, 480, DefaultInsets); again != got {
				t.Errorf("AnchorFor() not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestAnchorDirection(t *testing.T) {
	if d := AnchorFor(BottomLeft, 640, 480, DefaultInsets).Direction(); d != Up {
		t.Errorf("bottom anchor direction = %d, want Up", d)
	}
	if d := AnchorFor(TopLeft, 640, 480, DefaultInsets).Direction(); d != Down {
		t.Errorf("top anchor direction = %d, want Down", d)
	}
}

func TestPlanStack(t *testing.T) {
	style := BarStyle{Width: 125, Height: 25, Spacing: 5}

	t.Run("Downward", func(t *testing.T) {
		a := AnchorFor(TopLeft, 640, 480, DefaultInsets)
		got := PlanStack(a, 480, 64, style, 7)
		want := Stack{
			Anchor: a,
			Emoji:  image.Pt(32, 24),
			Bars:   image.Pt(32, 92),
			Label:  image.Pt(32, 321),
			Tally:  image.Pt(32, 342),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("PlanStack() mismatch (-want +got):\n%s", diff)
		}
		// Live bars end before the label, which sits above the tally.
		if barsEnd := got.Bars.Y + style.Extent(7); barsEnd >= got.Label.Y {
			t.Errorf("bars end at %d, overlapping label at %d", barsEnd, got.Label.Y)
		}
		if got.Emoji.Y+64 > got.Bars.Y {
			t.Errorf("emoji overlaps bars")
		}
		if got.Tally.Y <= got.Label.Y {
			t.Errorf("tally at %d should start below label at %d", got.Tally.Y, got.Label.Y)
		}
	})

	t.Run("Upward", func(t *testing.T) {
		a := AnchorFor(BottomLeft, 640, 480, DefaultInsets)
		got := PlanStack(a, 480, 64, style, 7)
		want := Stack{
			Anchor: a,
			Emoji:  image.Pt(32, 420),
			Bars:   image.Pt(32, 416),
			Label:  image.Pt(32, 195),
			Tally:  image.Pt(32, 166),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("PlanStack() mismatch (-want +got):\n%s", diff)
		}
		if barsEnd := got.Bars.Y - style.Extent(7); barsEnd <= got.Label.Y {
			t.Errorf("bars end at %d, overlapping label at %d", barsEnd, got.Label.Y)
		}
		if got.Tally.Y >= got.Label.Y {
			t.Errorf("tally at %d should start above label at %d", got.Tally.Y, got.Label.Y)
		}
	})

	t.Run("No rows", func(t *testing.T) {
		a := AnchorFor(TopRight, 640, 480, DefaultInsets)
		got := PlanStack(a, 480, 64, style, 0)
		if got.Label.Y != got.Bars.Y+labelGap+4 {
			t.Errorf("label = %d, want directly after the gap", got.Label.Y)
		}
	})
}
