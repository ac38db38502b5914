// Package gpucache holds the data the frame builder hands to shaders.
//
// Cache is persistent across frames: each owner keeps a Handle and
// re-uploads only after Invalidate. Buffer and BufferBuilder are rebuilt
// every frame and carry per-frame data such as quad primitive blocks.
package gpucache
