package audio

import (
	"iter"
	"slices"
)

// DefaultChunkBytes is the push size used when none is configured.
const DefaultChunkBytes = 32000

// Chunks splits pcm into pieces of at most size bytes.
// A non-positive size falls back to DefaultChunkBytes.
func Chunks(pcm []byte, size int) iter.Seq[[]byte] {
	if size <= 0 {
		size = DefaultChunkBytes
	}
	return slices.Chunk(pcm, size)
}
