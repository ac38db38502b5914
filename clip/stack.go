package clip

// ChainStack tracks the clips active during the picture tree walk. Each
// surface opens a level; clips pushed inside a level apply to primitives
// drawn into that surface only, since clips of enclosing surfaces are
// applied when the surface itself is composited.
type ChainStack struct {
	levels []chainLevel
	clips  []DataHandle
}

// chainLevel is one surface's portion of the stack.
type chainLevel struct {
	firstClip   int
	sharedClips []DataHandle
	// counts holds the number of clips added by each PushClip.
	counts []int
}

// NewChainStack creates a stack with a root level.
func NewChainStack() *ChainStack {
	s := &ChainStack{
		levels: make([]chainLevel, 0, 8),
		clips:  make([]DataHandle, 0, 32),
	}
	s.levels = append(s.levels, chainLevel{})
	return s
}

// Reset clears all clips and levels, leaving the root level.
func (s *ChainStack) Reset() {
	s.clips = s.clips[:0]
	s.levels = s.levels[:1]
	s.levels[0] = chainLevel{counts: s.levels[0].counts[:0]}
}

// PushClip walks the chain from id and activates every clip that is not
// shared with an enclosing surface.
func (s *ChainStack) PushClip(id ChainID, store *Store) {
	count := 0
	for cur := id; cur != NoChain; {
		node := store.ChainNode(cur)
		if !s.isShared(node.Handle) {
			s.clips = append(s.clips, node.Handle)
			count++
		}
		cur = node.Parent
	}
	level := &s.levels[len(s.levels)-1]
	level.counts = append(level.counts, count)
}

func (s *ChainStack) isShared(h DataHandle) bool {
	for i := range s.levels {
		for _, shared := range s.levels[i].sharedClips {
			if shared == h {
				return true
			}
		}
	}
	return false
}

// PopClip deactivates the clips added by the matching PushClip.
func (s *ChainStack) PopClip() {
	level := &s.levels[len(s.levels)-1]
	if len(level.counts) == 0 {
		panic("bug: clip chain stack popped more times than pushed")
	}
	last := len(level.counts) - 1
	n := level.counts[last]
	level.counts = level.counts[:last]
	s.clips = s.clips[:len(s.clips)-n]
}

// PushSurface opens a level for a new surface. sharedClips are applied by
// the surface itself and are skipped for primitives inside it.
func (s *ChainStack) PushSurface(sharedClips []DataHandle) {
	s.levels = append(s.levels, chainLevel{
		firstClip:   len(s.clips),
		sharedClips: sharedClips,
	})
}

// PopSurface closes the current surface level.
func (s *ChainStack) PopSurface() {
	if len(s.levels) <= 1 {
		panic("bug: clip chain stack popped the root surface")
	}
	level := s.levels[len(s.levels)-1]
	if len(level.counts) != 0 {
		panic("bug: surface popped with clips still pushed")
	}
	s.levels = s.levels[:len(s.levels)-1]
}

// CurrentClips returns the clips active for the current surface.
func (s *ChainStack) CurrentClips() []DataHandle {
	return s.clips[s.levels[len(s.levels)-1].firstClip:]
}

// Depth returns the number of open surface levels, including the root.
func (s *ChainStack) Depth() int {
	return len(s.levels)
}
