package wr

import (
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/spatial"
)

// pictureUpdateContext is what the picture update pass reads.
type pictureUpdateContext struct {
	store       *prim.Store
	tree        *spatial.Tree
	screenWorld geom.Rect
}

// updatePictures decides which pictures get a surface this frame and
// estimates every picture's local rect. It runs before visibility and
// never looks at individual primitives, only at clusters.
func updatePictures(ctx *pictureUpdateContext, surfaces *[]SurfaceInfo, root prim.PictureIndex) {
	updatePicture(ctx, surfaces, root, prim.RootSurfaceIndex)
}

func updatePicture(ctx *pictureUpdateContext, surfaces *[]SurfaceInfo, index prim.PictureIndex, parent prim.SurfaceIndex) {
	pic := ctx.store.Picture(index)
	pic.RasterConfig = nil
	if !pic.IsVisible() {
		return
	}

	surface := parent
	if mode := pic.RequestedCompositeMode; mode != nil {
		ps := &(*surfaces)[parent]
		info := newSurfaceInfo(
			pic.SpatialNode,
			pic.SpatialNode,
			mode.InflationFactor(),
			ctx.screenWorld,
			ctx.tree,
			ps.DevicePixelScale,
			[2]float32{1, 1},
		)
		*surfaces = append(*surfaces, info)
		surface = prim.SurfaceIndex(len(*surfaces) - 1)
		pic.RasterConfig = &prim.RasterConfig{CompositeMode: *mode, Surface: surface}
	}

	list := &pic.List
	for ci := range list.Clusters {
		c := &list.Clusters[ci]
		c.Flags &^= prim.ClusterIsVisible
		if clusterIsDrawable(ctx.tree, c) {
			c.Flags |= prim.ClusterIsVisible
		}

		// Child pictures are estimated first so their rects can feed the
		// cluster bounds.
		var bounds geom.Rect
		for i := c.First; i < c.First+c.Count; i++ {
			inst := &list.Instances[i]
			if inst.Kind != prim.KindPicture {
				bounds = bounds.Union(ctx.store.Template(inst.Template).PrimRect)
				continue
			}
			updatePicture(ctx, surfaces, inst.Picture, surface)
			child := ctx.store.Picture(inst.Picture)
			r := child.EstimatedLocalRect
			if child.RasterConfig != nil {
				r = child.RasterConfig.CompositeMode.InflatePictureRect(r, (*surfaces)[child.RasterConfig.Surface].ScaleFactors)
			}
			bounds = bounds.Union(r)
		}
		c.BoundingRect = bounds
	}

	// Estimate this picture's rect from the visible clusters.
	mapper := spatial.NewSpaceMapper(pic.SpatialNode, geom.MaxRect())
	var est geom.Rect
	for ci := range list.Clusters {
		c := &list.Clusters[ci]
		if c.Flags&prim.ClusterIsVisible == 0 {
			continue
		}
		mapper.SetTargetSpatialNode(c.SpatialNode, ctx.tree)
		if r, ok := mapper.Map(c.BoundingRect); ok {
			est = est.Union(r)
		}
	}
	pic.EstimatedLocalRect = est
}

// clusterIsDrawable reports whether the cluster's node can be drawn:
// its transform must be invertible, and a flipped node only shows
// primitives whose backface is visible.
func clusterIsDrawable(tree *spatial.Tree, c *prim.Cluster) bool {
	if !tree.Node(c.SpatialNode).Invertible {
		return false
	}
	if c.Flags&prim.ClusterIsBackfaceVisible != 0 {
		return true
	}
	inv, ok := tree.WorldTransform(c.SpatialNode).Inverse()
	if !ok {
		return false
	}
	// The z axis of the inverse points away from the viewer when the
	// node shows its back.
	return inv.M[10] >= 0
}
