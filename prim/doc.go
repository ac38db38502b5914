// Package prim holds the primitive store: pictures, their primitive
// lists grouped into clusters, the per-instance visibility records the
// visibility pass writes, and the interned primitive templates.
//
// Pictures are addressed by PictureIndex rather than by pointer. The
// visibility and prepare passes walk the tree recursively by index, so a
// parent and its child picture are never borrowed at the same time.
package prim
