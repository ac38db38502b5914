package prim

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Kind is the closed set of primitive kinds.
type Kind uint8

const (
	KindPicture Kind = iota
	KindRectangle
	KindImage
	KindYuvImage
	KindTextRun
	KindLineDecoration
	KindNormalBorder
	KindImageBorder
	KindLinearGradient
	KindRadialGradient
	KindConicGradient
	KindClear
	KindBackdrop
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPicture:
		return "Picture"
	case KindRectangle:
		return "Rectangle"
	case KindImage:
		return "Image"
	case KindYuvImage:
		return "YuvImage"
	case KindTextRun:
		return "TextRun"
	case KindLineDecoration:
		return "LineDecoration"
	case KindNormalBorder:
		return "NormalBorder"
	case KindImageBorder:
		return "ImageBorder"
	case KindLinearGradient:
		return "LinearGradient"
	case KindRadialGradient:
		return "RadialGradient"
	case KindConicGradient:
		return "ConicGradient"
	case KindClear:
		return "Clear"
	case KindBackdrop:
		return "Backdrop"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Debug overlay colors.
var (
	debugRed        = gputypes.Color{R: 1, G: 0, B: 0, A: 1}
	debugPurple     = gputypes.Color{R: 0.5, G: 0, B: 0.5, A: 1}
	debugOrange     = gputypes.Color{R: 1, G: 0.65, B: 0, A: 1}
	debugBlue       = gputypes.Color{R: 0, G: 0, B: 1, A: 1}
	debugPink       = gputypes.Color{R: 1, G: 0.75, B: 0.8, A: 1}
	debugCyan       = gputypes.Color{R: 0, G: 1, B: 1, A: 1}
	debugAquamarine = gputypes.Color{R: 0.4, G: 0.8, B: 0.67, A: 1}
	debugGrey       = gputypes.Color{R: 0.8, G: 0.8, B: 0.8, A: 0.5}
	debugNone       = gputypes.Color{}
)

// DebugColor returns the outline color used by the primitive debug
// overlay. Pictures are transparent and draw no outline.
func (k Kind) DebugColor() gputypes.Color {
	switch k {
	case KindPicture:
		return debugNone
	case KindTextRun:
		return debugRed
	case KindLineDecoration:
		return debugPurple
	case KindNormalBorder, KindImageBorder:
		return debugOrange
	case KindRectangle:
		return debugGrey
	case KindYuvImage, KindImage:
		return debugBlue
	case KindLinearGradient, KindRadialGradient, KindConicGradient:
		return debugPink
	case KindClear:
		return debugCyan
	case KindBackdrop:
		return debugAquamarine
	default:
		panic(fmt.Sprintf("bug: no debug color for %v", k))
	}
}

// IsImage reports whether k samples an image resource.
func (k Kind) IsImage() bool {
	return k == KindImage || k == KindYuvImage
}

// DebugPurple is the color of the obscured-image overlay.
func DebugPurple() gputypes.Color { return debugPurple }
