package wr

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
	"github.com/gogpu/wr/tilecache"
)

// BuiltScene is the input of a frame: the picture tree with its
// primitives, the spatial tree and the clip store.
//
// A BuiltScene is reused across frames. Tile caches persist in
// TileCaches so picture caching can compare tile contents between
// frames. Scroll offsets and animated properties may be changed between
// calls to FrameBuilder.Build.
type BuiltScene struct {
	Store       *prim.Store
	Tree        *spatial.Tree
	Clips       *clip.Store
	Properties  *spatial.SceneProperties
	OutputRect  geom.IntRect
	RootPicture prim.PictureIndex
	TileCaches  map[prim.SliceID]*tilecache.Instance

	DevicePixelScale float32
	Pan              geom.Vector
}

// Validate checks the references of the picture tree. Scenes made with
// SceneBuilder are valid by construction.
func (s *BuiltScene) Validate() error {
	if s.Store == nil || len(s.Store.Pictures) == 0 {
		return ErrEmptyScene
	}
	npics := prim.PictureIndex(len(s.Store.Pictures))
	if s.RootPicture >= npics {
		return fmt.Errorf("root picture %d: %w", s.RootPicture, ErrInvalidPictureIndex)
	}
	nodes := spatial.NodeIndex(s.Tree.Len())
	for i := range s.Store.Pictures {
		pic := &s.Store.Pictures[i]
		if pic.SpatialNode >= nodes {
			return fmt.Errorf("picture %d node %d: %w", i, pic.SpatialNode, ErrInvalidSpatialNode)
		}
		for _, c := range pic.List.Clusters {
			if c.SpatialNode >= nodes {
				return fmt.Errorf("picture %d cluster node %d: %w", i, c.SpatialNode, ErrInvalidSpatialNode)
			}
		}
		for j := range pic.List.Instances {
			inst := &pic.List.Instances[j]
			if inst.Kind == prim.KindPicture && inst.Picture >= npics {
				return fmt.Errorf("picture %d instance %d: child %d: %w", i, inst.ID, inst.Picture, ErrInvalidPictureIndex)
			}
		}
		if slice, ok := tileCacheSlice(pic); ok {
			if _, ok := s.TileCaches[slice]; !ok {
				return fmt.Errorf("picture %d: no tile cache for slice %d: %w", i, slice, ErrInvalidPictureIndex)
			}
		}
	}
	return nil
}

func tileCacheSlice(pic *prim.Picture) (prim.SliceID, bool) {
	m := pic.RequestedCompositeMode
	if m == nil || m.Kind != prim.CompositeTileCache {
		return 0, false
	}
	return m.SliceID, true
}

// SceneBuilder assembles a BuiltScene. It stands in for display list
// processing, which happens outside this package.
type SceneBuilder struct {
	scene  *BuiltScene
	nextID prim.InstanceID
	root   bool

	backfaceVisible bool
}

// NewSceneBuilder starts a scene covering outputRect in device pixels.
func NewSceneBuilder(outputRect geom.IntRect, devicePixelScale float32) *SceneBuilder {
	if devicePixelScale <= 0 {
		devicePixelScale = 1
	}
	return &SceneBuilder{
		scene: &BuiltScene{
			Store:            prim.NewStore(),
			Tree:             spatial.NewTree(),
			Clips:            clip.NewStore(clip.NewDataStore()),
			Properties:       spatial.NewSceneProperties(),
			OutputRect:       outputRect,
			TileCaches:       make(map[prim.SliceID]*tilecache.Instance),
			DevicePixelScale: devicePixelScale,
		},
		backfaceVisible: true,
	}
}

// Tree returns the spatial tree so callers can add frames.
func (b *SceneBuilder) Tree() *spatial.Tree { return b.scene.Tree }

// Clips returns the clip store so callers can add clip chains.
func (b *SceneBuilder) Clips() *clip.Store { return b.scene.Clips }

// Properties returns the animated scene properties.
func (b *SceneBuilder) Properties() *spatial.SceneProperties { return b.scene.Properties }

// SetBackfaceVisible sets the backface flag of primitives pushed after it.
func (b *SceneBuilder) SetBackfaceVisible(v bool) { b.backfaceVisible = v }

// AddPicture adds an empty picture. A nil mode makes it pass-through.
func (b *SceneBuilder) AddPicture(node spatial.NodeIndex, mode *prim.CompositeMode) prim.PictureIndex {
	return b.scene.Store.AddPicture(prim.Picture{
		SpatialNode:            node,
		RequestedCompositeMode: mode,
		Options:                prim.PictureOptions{InflateIfRequired: mode != nil && mode.Kind == prim.CompositeFilter},
	})
}

// AddTileCache adds a picture cache slice. Clips of shared are applied
// to the slice as a whole instead of to each primitive.
func (b *SceneBuilder) AddTileCache(slice prim.SliceID, node spatial.NodeIndex, shared clip.ChainID, background *gputypes.Color) prim.PictureIndex {
	var handles []clip.DataHandle
	for id := shared; id != clip.NoChain; {
		n := b.scene.Clips.ChainNode(id)
		handles = append(handles, n.Handle)
		id = n.Parent
	}
	b.scene.TileCaches[slice] = tilecache.New(tilecache.Params{
		Slice:           slice,
		SpatialNode:     node,
		BackgroundColor: background,
		SharedClips:     handles,
	})
	return b.AddPicture(node, prim.TileCacheMode(slice))
}

// SetRoot selects the picture the frame starts from.
func (b *SceneBuilder) SetRoot(pic prim.PictureIndex) {
	b.scene.RootPicture = pic
	b.root = true
}

// PushRect appends a solid rectangle to pic.
func (b *SceneBuilder) PushRect(pic prim.PictureIndex, node spatial.NodeIndex, rect geom.Rect, color gputypes.Color, chain clip.ChainID) prim.InstanceID {
	return b.PushPrimitive(pic, node, prim.Template{Kind: prim.KindRectangle, PrimRect: rect, Color: color}, chain)
}

// PushImage appends an image to pic. A zero StretchSize stretches the
// image over rect.
func (b *SceneBuilder) PushImage(pic prim.PictureIndex, node spatial.NodeIndex, rect geom.Rect, key resource.ImageKey, data prim.ImageData, chain clip.ChainID) prim.InstanceID {
	data.Key = key
	tmpl := prim.Template{Kind: prim.KindImage, PrimRect: rect, Image: data, MayNeedRepetition: true}
	return b.PushPrimitive(pic, node, tmpl, chain)
}

// PushPrimitive appends a primitive of any non-picture kind to pic.
func (b *SceneBuilder) PushPrimitive(pic prim.PictureIndex, node spatial.NodeIndex, tmpl prim.Template, chain clip.ChainID) prim.InstanceID {
	if tmpl.Kind == prim.KindPicture {
		panic("bug: pictures are pushed with PushPicture")
	}
	s := b.scene.Store
	inst := prim.Instance{
		ID:       b.id(),
		Kind:     tmpl.Kind,
		Template: s.AddTemplate(tmpl),
		ClipSet:  prim.ClipSet{LocalClipRect: geom.MaxRect(), ClipChain: chain},
	}
	if tmpl.Kind == prim.KindImage {
		inst.Image = s.AddImageInstance()
	}
	s.Picture(pic).List.Add(inst, tmpl.PrimRect, node, b.backfaceVisible)
	return inst.ID
}

// PushPicture makes child a primitive of parent. The child is placed on
// its own spatial node.
func (b *SceneBuilder) PushPicture(parent, child prim.PictureIndex, chain clip.ChainID) prim.InstanceID {
	s := b.scene.Store
	inst := prim.Instance{
		ID:      b.id(),
		Kind:    prim.KindPicture,
		Picture: child,
		ClipSet: prim.ClipSet{LocalClipRect: geom.MaxRect(), ClipChain: chain},
	}
	// The cluster rect is recomputed by the picture update pass once the
	// child's estimated rect is known.
	s.Picture(parent).List.Add(inst, geom.Rect{}, s.Picture(child).SpatialNode, b.backfaceVisible)
	return inst.ID
}

func (b *SceneBuilder) id() prim.InstanceID {
	id := b.nextID
	b.nextID++
	return id
}

// Build validates and returns the scene. The first picture is the root
// unless SetRoot was called.
func (b *SceneBuilder) Build() (*BuiltScene, error) {
	if !b.root {
		b.scene.RootPicture = 0
	}
	if err := b.scene.Validate(); err != nil {
		return nil, fmt.Errorf("wr: build scene: %w", err)
	}
	return b.scene, nil
}
