// Package wr builds renderable frames from a retained scene.
//
// # Overview
//
// wr is the frame building half of a GPU renderer. A [BuiltScene] holds
// the picture tree, the spatial tree and the clip store. Every call to
// [FrameBuilder.Build] turns that scene into a [Frame]: a list of render
// passes with batched draw calls, the render task graph, GPU buffers and
// the tiles the compositor has to present.
//
// # Quick Start
//
//	import "github.com/gogpu/wr"
//
//	sb := wr.NewSceneBuilder(outputRect, 1)
//	root := sb.AddPicture(spatial.RootNode, nil)
//	sb.PushRect(root, spatial.RootNode, geom.NewRect(0, 0, 100, 100), red, clip.NoChain)
//	scene, err := sb.Build()
//
//	fb := wr.NewFrameBuilder()
//	frame, err := fb.Build(scene, resource.New(), gpucache.New())
//
// # Pipeline
//
// A frame is built in stages:
//   - Picture update: surfaces are assigned and picture bounds estimated
//   - Visibility: primitives are culled against clip chains, picture
//     cache tiles and dirty regions
//   - Prepare: render tasks are allocated for pictures, clip masks and
//     quad segments
//   - Passes: the task graph is split into passes and targets
//   - Batching: primitives are grouped by batch key into draw calls
//
// Picture caching ([tilecache]) keeps the content of scroll slices in
// tiles between frames so that only tiles whose dependencies changed are
// redrawn.
//
// # Coordinate System
//
// Local rects are in the space of a spatial node. World space is the root
// reference frame in logical pixels. Device space is world space scaled
// by the device pixel scale. Origin is at top-left, Y increases down.
//
// # Logging
//
// wr logs nothing by default. See [SetLogger].
package wr

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
