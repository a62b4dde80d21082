package database

// DistanceToScore converts a pgvector cosine distance (0 identical, 2
// opposite) into a similarity score clamped to [0, 1]. This score is the
// coarse retrieval score only; cross-encoder rerank scores live on a
// different scale and are never compared with it.
func DistanceToScore(distance float64) float64 {
	score := 1.0 - distance

	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}

	return score
}
