package spatial

import "github.com/gogpu/wr/geom"

// PropertyBindingID names an animated property. Zero means "not bound".
type PropertyBindingID uint64

// SceneProperties holds the current values of animated properties.
type SceneProperties struct {
	transforms map[PropertyBindingID]geom.Transform
	floats     map[PropertyBindingID]float32
}

// NewSceneProperties creates an empty property set.
func NewSceneProperties() *SceneProperties {
	return &SceneProperties{
		transforms: make(map[PropertyBindingID]geom.Transform),
		floats:     make(map[PropertyBindingID]float32),
	}
}

// SetTransform sets the value of a transform binding.
func (p *SceneProperties) SetTransform(id PropertyBindingID, t geom.Transform) {
	p.transforms[id] = t
}

// SetFloat sets the value of a float binding (e.g. opacity).
func (p *SceneProperties) SetFloat(id PropertyBindingID, v float32) {
	p.floats[id] = v
}

// ResolveTransform returns the bound value, or fallback if id is unset.
// A nil receiver resolves everything to the fallback.
func (p *SceneProperties) ResolveTransform(id PropertyBindingID, fallback geom.Transform) geom.Transform {
	if p == nil || id == 0 {
		return fallback
	}
	if t, ok := p.transforms[id]; ok {
		return t
	}
	return fallback
}

// ResolveFloat returns the bound value, or fallback if id is unset.
func (p *SceneProperties) ResolveFloat(id PropertyBindingID, fallback float32) float32 {
	if p == nil || id == 0 {
		return fallback
	}
	if v, ok := p.floats[id]; ok {
		return v
	}
	return fallback
}
