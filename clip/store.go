package clip

import (
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/spatial"
)

// DataHandle refers to an interned clip item.
type DataHandle uint32

// DataStore interns clip items. Equal items share a handle, so a clip
// referenced by many chains is classified once per primitive.
type DataStore struct {
	items []Item
	index map[Item]DataHandle
}

// NewDataStore creates an empty store.
func NewDataStore() *DataStore {
	return &DataStore{index: make(map[Item]DataHandle)}
}

// Intern returns the handle for item, adding it if needed.
func (d *DataStore) Intern(item Item) DataHandle {
	if h, ok := d.index[item]; ok {
		return h
	}
	d.items = append(d.items, item)
	h := DataHandle(len(d.items) - 1)
	d.index[item] = h
	return h
}

// Get returns the item behind h.
func (d *DataStore) Get(h DataHandle) *Item { return &d.items[h] }

// Len returns the number of interned items.
func (d *DataStore) Len() int { return len(d.items) }

// ChainID identifies a clip chain node. A chain is a linked list of clip
// items walked from a node to its parents.
type ChainID uint32

// NoChain is the empty clip chain.
const NoChain ChainID = ^ChainID(0)

// ChainNode is one link of a clip chain.
type ChainNode struct {
	Handle DataHandle
	Parent ChainID
}

// NodeRange addresses a run of clip node instances built for one
// primitive this frame.
type NodeRange struct {
	First uint32
	Count uint32
}

// NodeFlags describe how a clip node relates to its primitive.
type NodeFlags uint8

const (
	// SameSpatialNode is set when clip and primitive share a spatial node.
	SameSpatialNode NodeFlags = 1 << iota
	// SameCoordSystem is set when clip and primitive share a coordinate
	// system.
	SameCoordSystem
)

// NodeInstance is a clip node that partially affects a primitive and
// therefore takes part in rendering it.
type NodeInstance struct {
	Handle      DataHandle
	Flags       NodeFlags
	SpatialNode spatial.NodeIndex
}

// ChainInstance is the resolved clip state of one primitive.
type ChainInstance struct {
	// ClipsRange addresses the clip node instances affecting the primitive.
	ClipsRange NodeRange
	// HasNonLocalClips is set if any clip lives in another spatial node.
	HasNonLocalClips bool
	// LocalClipRect is the primitive's clip rect in its local space.
	LocalClipRect geom.Rect
	// PicClipRect is the clipped primitive rect in picture space.
	PicClipRect geom.Rect
	// PicCoverageRect is the area the primitive may touch in picture space.
	PicCoverageRect geom.Rect
	// PicSpatialNode is the spatial node of the picture space.
	PicSpatialNode spatial.NodeIndex
	// NeedsMask is set when some clip cannot be applied by a rect
	// intersection and must be rendered as a mask.
	NeedsMask bool
}

// EmptyChainInstance returns an instance that clips nothing.
func EmptyChainInstance(picNode spatial.NodeIndex) ChainInstance {
	return ChainInstance{PicSpatialNode: picNode}
}

type conversion struct {
	kind spatial.MappingKind
	// clipToPrim maps clip space into primitive space.
	clipToPrim geom.ScaleOffset
	// clipToWorld maps clip space into world space.
	clipToWorld geom.Transform
}

func newConversion(primNode, clipNode spatial.NodeIndex, tree *spatial.Tree) conversion {
	if primNode == clipNode {
		return conversion{kind: spatial.MappingLocal}
	}
	if tree.IsMatchingCoordSystem(primNode, clipNode) {
		m := tree.RelativeTransform(clipNode, primNode)
		return conversion{kind: spatial.MappingScaleOffset, clipToPrim: m.ScaleOffset}
	}
	return conversion{kind: spatial.MappingTransform, clipToWorld: tree.WorldTransform(clipNode)}
}

type nodeInfo struct {
	handle DataHandle
	conv   conversion
}

// Store owns the clip chain graph and the per-frame clip node instances.
type Store struct {
	Data      *DataStore
	chains    []ChainNode
	instances []NodeInstance

	activeClipRect  geom.Rect
	activeVisible   bool
	activeNodes     []nodeInfo
	activeHasNonLoc bool
}

// NewStore creates a store backed by data.
func NewStore(data *DataStore) *Store {
	if data == nil {
		data = NewDataStore()
	}
	return &Store{Data: data}
}

// AddClipChainNode appends a node to the chain graph.
func (s *Store) AddClipChainNode(handle DataHandle, parent ChainID) ChainID {
	s.chains = append(s.chains, ChainNode{Handle: handle, Parent: parent})
	return ChainID(len(s.chains) - 1)
}

// AddClipChain interns items and links them into a chain under parent,
// returning the innermost node.
func (s *Store) AddClipChain(parent ChainID, items ...Item) ChainID {
	id := parent
	for _, it := range items {
		id = s.AddClipChainNode(s.Data.Intern(it), id)
	}
	return id
}

// ChainNode returns the node for id.
func (s *Store) ChainNode(id ChainID) ChainNode { return s.chains[id] }

// ClearOldInstances drops the clip node instances of the previous frame.
func (s *Store) ClearOldInstances() {
	s.instances = s.instances[:0]
}

// InstanceCount returns the number of clip node instances built this frame.
func (s *Store) InstanceCount() int { return len(s.instances) }

// GetInstanceFromRange returns the i'th instance of r.
func (s *Store) GetInstanceFromRange(r NodeRange, i uint32) NodeInstance {
	if i >= r.Count {
		panic("bug: clip instance index out of range")
	}
	return s.instances[r.First+i]
}

// SetActiveClips prepares the clips that may affect the next primitive.
// Clips that can be reduced to a rect in the primitive's coordinate system
// shrink the local clip rect right away. If that rect becomes empty the
// following BuildClipChainInstance reports the primitive as clipped.
func (s *Store) SetActiveClips(localPrimClipRect geom.Rect, primNode, picNode spatial.NodeIndex,
	clips []DataHandle, tree *spatial.Tree) {
	s.activeNodes = s.activeNodes[:0]
	s.activeClipRect = localPrimClipRect
	s.activeVisible = true
	s.activeHasNonLoc = false

	for _, h := range clips {
		item := s.Data.Get(h)
		conv := newConversion(primNode, item.SpatialNode, tree)
		if item.SpatialNode != picNode {
			s.activeHasNonLoc = true
		}
		if r, ok := item.LocalClipRect(); ok {
			switch conv.kind {
			case spatial.MappingLocal:
				s.activeClipRect, s.activeVisible = s.activeClipRect.Intersection(r)
			case spatial.MappingScaleOffset:
				s.activeClipRect, s.activeVisible = s.activeClipRect.Intersection(conv.clipToPrim.MapRect(r))
			case spatial.MappingTransform:
				// Reduced against picture space later.
			}
		}
		if !s.activeVisible {
			s.activeNodes = s.activeNodes[:0]
			return
		}
		s.activeNodes = append(s.activeNodes, nodeInfo{handle: h, conv: conv})
	}
}

// BuildClipChainInstance resolves the active clips against a primitive's
// local rect. It returns false when the primitive is clipped out or cannot
// be mapped into picture or world space.
func (s *Store) BuildClipChainInstance(localPrimRect geom.Rect, primToPic, picToWorld *spatial.SpaceMapper,
	worldCullingRect geom.Rect) (ChainInstance, bool) {
	if !s.activeVisible {
		return ChainInstance{}, false
	}
	localBounding, ok := localPrimRect.Intersection(s.activeClipRect)
	if !ok {
		return ChainInstance{}, false
	}
	picClipRect, ok := primToPic.Map(localBounding)
	if !ok {
		return ChainInstance{}, false
	}
	worldClipRect, ok := picToWorld.Map(picClipRect)
	if !ok {
		return ChainInstance{}, false
	}

	first := uint32(len(s.instances))
	needsMask := false

	for _, info := range s.activeNodes {
		item := s.Data.Get(info.handle)
		var res result
		switch info.conv.kind {
		case spatial.MappingLocal:
			res = item.clipResult(localBounding)
		case spatial.MappingScaleOffset:
			res = item.clipResult(info.conv.clipToPrim.UnmapRect(localBounding))
		case spatial.MappingTransform:
			res = item.clipResultComplex(info.conv.clipToWorld, worldClipRect, worldCullingRect)
		default:
			panic("bug: unknown clip space conversion")
		}

		switch res {
		case resultAccept:
		case resultReject:
			s.instances = s.instances[:first]
			return ChainInstance{}, false
		case resultPartial:
			var flags NodeFlags
			if info.conv.kind == spatial.MappingLocal {
				flags |= SameSpatialNode | SameCoordSystem
			} else if info.conv.kind == spatial.MappingScaleOffset {
				flags |= SameCoordSystem
			}
			switch {
			case item.Kind == KindRectangle && item.Mode == ModeClip:
				needsMask = needsMask || flags&SameCoordSystem == 0
			default:
				needsMask = true
			}
			s.instances = append(s.instances, NodeInstance{
				Handle:      info.handle,
				Flags:       flags,
				SpatialNode: item.SpatialNode,
			})
		}
	}

	return ChainInstance{
		ClipsRange:       NodeRange{First: first, Count: uint32(len(s.instances)) - first},
		HasNonLocalClips: s.activeHasNonLoc,
		LocalClipRect:    s.activeClipRect,
		PicClipRect:      picClipRect,
		PicCoverageRect:  picClipRect,
		PicSpatialNode:   primToPic.RefNode,
		NeedsMask:        needsMask,
	}, true
}
