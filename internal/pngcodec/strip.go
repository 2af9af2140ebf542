package pngcodec

// StripResult is the outcome of Strip: the structural chunks that survive
// and the types of everything discarded, both in stream order.
type StripResult struct {
	Retained []Chunk
	Dropped  []ChunkType
}

// DroppedCount returns how many chunks were discarded.
func (r StripResult) DroppedCount() int { return len(r.Dropped) }

// Strip keeps only IHDR, IDAT and IEND. The input stream is left untouched;
// retained chunks share their payloads with it.
func Strip(s *Stream) StripResult {
	res := StripResult{Retained: make([]Chunk, 0, len(s.Chunks))}
	for _, c := range s.Chunks {
		if c.Type.IsStructural() {
			res.Retained = append(res.Retained, c)
			continue
		}
		res.Dropped = append(res.Dropped, c.Type)
	}
	return res
}
