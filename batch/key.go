// Package batch turns primitive commands into GPU draw batches. Batches
// share a shader, blend mode and texture bindings; compatible batches
// are merged when no overlapping primitive lies between them.
package batch

import (
	"fmt"

	"github.com/gogpu/wr/prim"
)

// BlendMode is the fixed-function blend state of a batch.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendPremultipliedAlpha
	BlendPremultipliedDestOut
	BlendSubpixelDualSource
	// BlendAdvanced uses a hardware advanced blend equation.
	BlendAdvanced
)

// String returns the blend mode name.
func (b BlendMode) String() string {
	switch b {
	case BlendNone:
		return "None"
	case BlendPremultipliedAlpha:
		return "PremultipliedAlpha"
	case BlendPremultipliedDestOut:
		return "PremultipliedDestOut"
	case BlendSubpixelDualSource:
		return "SubpixelDualSource"
	case BlendAdvanced:
		return "Advanced"
	default:
		return fmt.Sprintf("Unknown(%d)", b)
	}
}

// Kind selects the shader of a batch.
type Kind uint8

const (
	KindSolid Kind = iota
	KindImage
	// KindBlend composites a picture render task.
	KindBlend
	KindMixBlend
	KindQuad
	KindGradient
	KindBorder
	KindTextRun
	KindClear
)

// String returns the batch kind name.
func (k Kind) String() string {
	switch k {
	case KindSolid:
		return "Solid"
	case KindImage:
		return "Image"
	case KindBlend:
		return "Blend"
	case KindMixBlend:
		return "MixBlend"
	case KindQuad:
		return "Quad"
	case KindGradient:
		return "Gradient"
	case KindBorder:
		return "Border"
	case KindTextRun:
		return "TextRun"
	case KindClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// KindForPrimitive returns the batch kind drawing a primitive kind.
func KindForPrimitive(k prim.Kind) Kind {
	switch k {
	case prim.KindRectangle, prim.KindBackdrop:
		return KindSolid
	case prim.KindImage, prim.KindYuvImage, prim.KindImageBorder:
		return KindImage
	case prim.KindPicture:
		return KindBlend
	case prim.KindTextRun:
		return KindTextRun
	case prim.KindLineDecoration, prim.KindNormalBorder:
		return KindBorder
	case prim.KindLinearGradient, prim.KindRadialGradient, prim.KindConicGradient:
		return KindGradient
	case prim.KindClear:
		return KindClear
	default:
		panic(fmt.Sprintf("bug: no batch kind for primitive %v", k))
	}
}

// TextureSource names a texture bound to a batch.
type TextureSource uint32

const (
	// TextureInvalid leaves a slot unbound. It is compatible with
	// every source.
	TextureInvalid TextureSource = 0
)

// Textures are the three texture slots of a batch.
type Textures [3]TextureSource

// IsCompatibleWith reports whether t and o can share a draw call.
func (t Textures) IsCompatibleWith(o Textures) bool {
	for i := range t {
		if t[i] != TextureInvalid && o[i] != TextureInvalid && t[i] != o[i] {
			return false
		}
	}
	return true
}

// Combine fills the unbound slots of t from o.
func (t Textures) Combine(o Textures) Textures {
	for i := range t {
		if t[i] == TextureInvalid {
			t[i] = o[i]
		}
	}
	return t
}

// Key identifies the GPU state of a batch.
type Key struct {
	Kind     Kind
	Blend    BlendMode
	Textures Textures
}

// IsCompatibleWith reports whether k and o can be merged.
func (k Key) IsCompatibleWith(o Key) bool {
	return k.Kind == o.Kind && k.Blend == o.Blend && k.Textures.IsCompatibleWith(o.Textures)
}
