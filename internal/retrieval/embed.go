// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the embedding size used when none is configured.
const DefaultDimensions = 256

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder is a deterministic bag-of-words embedder using signed
// feature hashing over words and adjacent word pairs. It needs no model
// and gives identical vectors for identical text across runs.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns an embedder producing dims-length vectors.
// Values below 8 use DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 8 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// Embed returns the L2-normalized hashed vector for text. The last
// component carries a small constant so empty text still has a direction.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dims)
	buckets := h.dims - 1

	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, buckets, tok, 1.0)
		if i > 0 {
			h.add(vec, buckets, tokens[i-1]+" "+tok, 0.5)
		}
	}
	vec[h.dims-1] = 0.01

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dims)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashEmbedder) add(vec []float64, buckets int, feature string, weight float64) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(buckets))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lower-cases text and splits it into letter/digit runs of at
// least two characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
