// Package geom provides the float32 geometry shared by the frame builder:
// points, sizes and boxes in layout, picture, world and device space,
// scale-offset mappings and full 4x4 transforms.
//
// Rect uses the box convention (Min/Max corners). Intersects is strict and
// ContainsBox is inclusive, which matters for tile classification where a
// tile sharing an edge with a clip region is considered outside of it.
package geom
