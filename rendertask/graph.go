// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendertask

import (
	"fmt"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
)

// PassKind says where a pass draws.
type PassKind uint8

const (
	// PassMainFramebuffer is the final pass drawing into the presented
	// surface.
	PassMainFramebuffer PassKind = iota
	// PassOffScreen passes draw into render target atlases, the texture
	// cache and picture cache tiles.
	PassOffScreen
)

// String returns the pass kind name.
func (k PassKind) String() string {
	switch k {
	case PassMainFramebuffer:
		return "MainFramebuffer"
	case PassOffScreen:
		return "OffScreen"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Pass is the set of tasks that run between two target switches. Tasks
// only read outputs of earlier passes.
type Pass struct {
	Kind  PassKind
	Tasks []ID
	// ScreenSize is the framebuffer size of the main pass.
	ScreenSize geom.IntSize
	// FastClears is set when targets may be cleared as a whole.
	FastClears bool
}

// Graph is the render task DAG of one frame.
type Graph struct {
	tasks []Task
}

// New creates an empty graph.
func New() *Graph { return &Graph{} }

// Add appends t and returns its id.
func (g *Graph) Add(t Task) ID {
	t.SavedIndex = NotSaved
	t.Pass = -1
	t.DataAddress = gpucache.InvalidBufferAddress
	g.tasks = append(g.tasks, t)
	return ID(len(g.tasks) - 1)
}

// Get returns the task with id.
func (g *Graph) Get(id ID) *Task {
	return &g.tasks[id]
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// AddDependency makes parent read the output of child.
func (g *Graph) AddDependency(parent, child ID) {
	p := g.Get(parent)
	p.Children = append(p.Children, child)
}

// SetLocation resolves the location of an unallocated task.
func (g *Graph) SetLocation(id ID, loc Location) {
	t := g.Get(id)
	if t.Location.Kind != LocationUnallocated {
		panic(fmt.Sprintf("bug: render task %d location resolved twice", id))
	}
	t.Location = loc
}

// GeneratePasses partitions the tasks reachable from main into passes.
// A task runs one pass before the earliest of its readers. The pass of
// main is last and draws to the framebuffer if main has a fixed
// location. Tasks read more than one pass later are marked
// SavedPending.
func (g *Graph) GeneratePasses(main ID, screenSize geom.IntSize, fastClears bool) []*Pass {
	depth := make([]int, len(g.tasks))
	for i := range depth {
		depth[i] = -1
	}
	var visit func(id ID, d int)
	visit = func(id ID, d int) {
		if depth[id] >= d {
			return
		}
		depth[id] = d
		for _, c := range g.tasks[id].Children {
			visit(c, d+1)
		}
	}
	visit(main, 0)

	maxDepth := 0
	for i, d := range depth {
		if d < 0 {
			slogger().Warn("rendertask: task not reachable from main task", "task", i, "kind", g.tasks[i].Kind)
			continue
		}
		maxDepth = max(maxDepth, d)
	}

	passes := make([]*Pass, maxDepth+1)
	for i := range passes {
		passes[i] = &Pass{Kind: PassOffScreen, ScreenSize: screenSize, FastClears: fastClears}
	}
	if g.tasks[main].Location.Kind == LocationFixed {
		passes[maxDepth].Kind = PassMainFramebuffer
	}
	for i, d := range depth {
		if d < 0 {
			continue
		}
		p := maxDepth - d
		g.tasks[i].Pass = p
		passes[p].Tasks = append(passes[p].Tasks, ID(i))
	}

	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Pass < 0 {
			continue
		}
		for _, c := range t.Children {
			if t.Pass-g.tasks[c].Pass > 1 {
				g.tasks[c].SavedIndex = SavedPending
			}
		}
	}

	slogger().Debug("rendertask: passes generated", "tasks", len(g.tasks), "passes", len(passes))
	return passes
}

// ResolveSavedIndex replaces the pending saved index of a task.
func (g *Graph) ResolveSavedIndex(id ID, index SavedTargetIndex) {
	t := g.Get(id)
	if t.SavedIndex != SavedPending {
		panic(fmt.Sprintf("bug: render task %d has no pending saved target", id))
	}
	t.SavedIndex = index
}

// WriteTaskData writes two blocks per allocated task into buf: the
// target rect and (content origin, device pixel scale). Shaders address
// tasks by the returned DataAddress.
func (g *Graph) WriteTaskData(buf *gpucache.BufferBuilder) {
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Location.Kind == LocationUnallocated || t.DataAddress != gpucache.InvalidBufferAddress {
			continue
		}
		r := t.Location.Rect
		var origin geom.Point
		var dps float32 = 1
		switch t.Kind {
		case KindPicture:
			origin, dps = t.Picture.ContentOrigin, t.Picture.DevicePixelScale
		case KindPrim:
			origin, dps = t.Prim.ContentOrigin, t.Prim.DevicePixelScale
		case KindCacheMask:
			origin, dps = t.Mask.ActualRect.Min, t.Mask.DevicePixelScale
		case KindBlur, KindReadback, KindScaling, KindBlit:
		default:
			panic(fmt.Sprintf("bug: unknown render task kind %d", t.Kind))
		}
		w := buf.F.WriteBlocks(2)
		w.Push([4]float32{float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)})
		w.Push([4]float32{origin.X, origin.Y, dps, float32(t.Location.Layer)})
		t.DataAddress = w.Finish()
	}
}
