package world

// SpatialIndex buckets entity ids of one category by chunk.
//
// Empty buckets are deleted so the map only holds occupied chunks.
type SpatialIndex struct {
	buckets map[ChunkID]map[uint64]struct{}
}

// NewSpatialIndex returns an empty index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{buckets: make(map[ChunkID]map[uint64]struct{})}
}

// Insert adds id to chunk c.
func (s *SpatialIndex) Insert(id uint64, c ChunkID) {
	b, ok := s.buckets[c]
	if !ok {
		b = make(map[uint64]struct{})
		s.buckets[c] = b
	}
	b[id] = struct{}{}
}

// Remove deletes id from chunk c, pruning the bucket when it empties.
func (s *SpatialIndex) Remove(id uint64, c ChunkID) {
	b, ok := s.buckets[c]
	if !ok {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(s.buckets, c)
	}
}

// Move migrates id between chunks. It is a no-op when from == to.
func (s *SpatialIndex) Move(id uint64, from, to ChunkID) {
	if from == to {
		return
	}
	s.Remove(id, from)
	s.Insert(id, to)
}

// Contains reports whether id is in chunk c.
func (s *SpatialIndex) Contains(id uint64, c ChunkID) bool {
	_, ok := s.buckets[c][id]
	return ok
}

// Ring calls fn for every id within ring chunks of center, including center.
func (s *SpatialIndex) Ring(center ChunkID, ring int, fn func(id uint64)) {
	if len(s.buckets) == 0 {
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		for dz := -ring; dz <= ring; dz++ {
			for id := range s.buckets[ChunkID{X: center.X + dx, Z: center.Z + dz}] {
				fn(id)
			}
		}
	}
}

// Chunks returns the number of occupied chunks.
func (s *SpatialIndex) Chunks() int { return len(s.buckets) }
