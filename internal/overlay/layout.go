package overlay

import "image"

// Location selects the screen quadrant the overlay is anchored to.
// Values match overlay_location in the settings file.
type Location int

const (
	TopRight Location = iota
	TopLeft
	BottomLeft
	BottomRight
)

func (l Location) String() string {
	switch l {
	case TopRight:
		return "top-right"
	case TopLeft:
		return "top-left"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	}
	return "unknown"
}

// Direction is the vertical step applied to stacked elements.
type Direction int

const (
	Down Direction = 1
	Up   Direction = -1
)

// Insets are fractions of the frame size measured from the top-left corner.
// Near places an anchor close to the left/top edge, Far close to the right/bottom edge.
type Insets struct {
	Near float64
	Far  float64
}

// DefaultInsets places anchors 1/20 from the near edges and 7/8 toward the far edges.
var DefaultInsets = Insets{Near: 1.0 / 20, Far: 7.0 / 8}

// Anchor is the top-left pixel of the overlay stack.
type Anchor struct {
	X, Y        int
	GrowsUpward bool
}

// Direction returns Up for bottom anchors and Down otherwise.
func (a Anchor) Direction() Direction {
	if a.GrowsUpward {
		return Up
	}
	return Down
}

// AnchorFor maps a location to pixel coordinates. Unknown locations fall back to TopRight.
func AnchorFor(loc Location, width, height int, in Insets) Anchor {
	left := int(float64(width) * in.Near)
	right := int(float64(width) * in.Far)
	top := int(float64(height) * in.Near)
	bottom := int(float64(height) * in.Far)

	switch loc {
	case TopLeft:
		return Anchor{X: left, Y: top}
	case BottomLeft:
		return Anchor{X: left, Y: bottom, GrowsUpward: true}
	case BottomRight:
		return Anchor{X: right, Y: bottom, GrowsUpward: true}
	default:
		return Anchor{X: right, Y: top}
	}
}

// Stack holds the origin of each overlay element for one slot.
type Stack struct {
	Anchor Anchor
	Emoji  image.Point
	Bars   image.Point // first live bar
	Label  image.Point // text baseline
	Tally  image.Point // first tally bar
}

const (
	labelGap = 15
	tallyGap = 25
)

// PlanStack lays out emoji, live bars, dominant label and tally so they flow
// away from the anchored edge without overlapping. rows is the number of live
// bars drawn above the label.
func PlanStack(a Anchor, frameHeight, emojiSize int, style BarStyle, rows int) Stack {
	dir := int(a.Direction())
	gap := frameHeight / 100

	var barsY int
	if a.GrowsUpward {
		barsY = a.Y - gap
	} else {
		barsY = a.Y + emojiSize + gap
	}
	labelRow := barsY + style.Extent(rows)*dir + labelGap*dir
	return Stack{
		Anchor: a,
		Emoji:  image.Pt(a.X, a.Y),
		Bars:   image.Pt(a.X, barsY),
		Label:  image.Pt(a.X, labelRow+gap),
		Tally:  image.Pt(a.X, labelRow+tallyGap*dir),
	}
}
