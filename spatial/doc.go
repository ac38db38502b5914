// Package spatial implements the spatial tree: reference frames, scroll
// frames and sticky frames, plus the mappers that move rects between the
// spaces they define.
//
// Nodes whose transforms relate by scale and offset share a coordinate
// system; mapping between them never needs a matrix. Crossing coordinate
// systems falls back to a full transform and may fail for singular or
// projective transforms, in which case callers treat the content as culled.
package spatial
