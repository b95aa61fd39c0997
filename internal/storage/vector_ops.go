package storage

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/dshills/codesoul/pkg/types"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - similarity, clamped to [0, 2] against rounding
func cosineDistance(a, b []float32) float64 {
	return clampDistance(1 - cosineSimilarity(a, b))
}

func clampDistance(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return 2
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// sortResults orders results by ascending distance. Ties break on ID so
// equal scores come back in a stable order.
func sortResults(results []types.RetrievalResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
}

// topK sorts results and keeps the first k
func topK(results []types.RetrievalResult, k int) []types.RetrievalResult {
	sortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineDistance is an exported helper for testing
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}
