package persistence

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Vectors of different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// scored pairs a candidate position with its similarity.
type scored struct {
	pos   int
	score float64
}

// topK ranks candidates against query and returns the best k, highest
// similarity first. Ties keep candidate order.
func topK(query []float32, candidates [][]float32, k int) []scored {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{pos: i, score: CosineSimilarity(query, c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked[:min(k, len(ranked))]
}
