package prim

import (
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/spatial"
)

// InstanceID is a debug identifier for a primitive instance.
type InstanceID uint32

// ClipSet is the clip information attached to an instance by scene
// building.
type ClipSet struct {
	LocalClipRect geom.Rect
	ClipChain     clip.ChainID
}

// Instance is one placement of a primitive.
type Instance struct {
	ID   InstanceID
	Kind Kind
	// Template addresses the interned primitive data. Unused for pictures.
	Template TemplateHandle
	// Picture is the child picture of a KindPicture instance.
	Picture PictureIndex
	// Image addresses the per-instance image state of a KindImage instance.
	Image   ImageInstanceIndex
	ClipSet ClipSet
	Vis     Visibility
}

// Reset resets the visibility record.
func (i *Instance) Reset() { i.Vis.Reset() }

// ClearVisibility marks an instance invisible after it was found visible.
func (i *Instance) ClearVisibility() { i.Vis.Reset() }

// ClusterFlags describe a cluster.
type ClusterFlags uint8

const (
	// ClusterIsVisible is cleared by the picture update pass when the
	// cluster's spatial node cannot be drawn this frame.
	ClusterIsVisible ClusterFlags = 1 << iota
	// ClusterIsBackfaceVisible is set when the primitives stay visible
	// if their transform flips them.
	ClusterIsBackfaceVisible
)

// Cluster is a contiguous run of instances sharing a spatial node. The
// visibility pass updates its space mappers once per cluster.
type Cluster struct {
	SpatialNode spatial.NodeIndex
	Flags       ClusterFlags
	// First and Count address the cluster's instances in List.Instances.
	First, Count int
	// BoundingRect is the union of the instances' local rects.
	BoundingRect geom.Rect
}

// MaxClusterSize bounds the instances per cluster.
const MaxClusterSize = 256

// List is the ordered primitive list of a picture. Order is paint order.
type List struct {
	Clusters  []Cluster
	Instances []Instance
}

// Add appends an instance with an Unset visibility record, extending the last cluster when it has the same
// spatial node and backface flag.
func (l *List) Add(inst Instance, localRect geom.Rect, node spatial.NodeIndex, backfaceVisible bool) {
	flags := ClusterIsVisible
	if backfaceVisible {
		flags |= ClusterIsBackfaceVisible
	}
	inst.Vis = NewVisibility()
	l.Instances = append(l.Instances, inst)

	if n := len(l.Clusters); n > 0 {
		c := &l.Clusters[n-1]
		same := c.SpatialNode == node &&
			c.Flags&ClusterIsBackfaceVisible == flags&ClusterIsBackfaceVisible
		if same && c.Count < MaxClusterSize {
			c.Count++
			c.BoundingRect = c.BoundingRect.Union(localRect)
			return
		}
	}
	l.Clusters = append(l.Clusters, Cluster{
		SpatialNode:  node,
		Flags:        flags,
		First:        len(l.Instances) - 1,
		Count:        1,
		BoundingRect: localRect,
	})
}

// ClusterInstances returns the instances of c.
func (l *List) ClusterInstances(c *Cluster) []Instance {
	return l.Instances[c.First : c.First+c.Count]
}

// Len returns the number of instances.
func (l *List) Len() int { return len(l.Instances) }
