package face

import (
	"context"
	"errors"
	"math"
)

// Vector is a face embedding.
type Vector []float32

var (
	// ErrNoFaceDetected means the image decoded fine but holds no usable face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInvalidImage means the payload is not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrNotEnrolled means no embedding is stored for the subject.
	ErrNotEnrolled = errors.New("subject not enrolled")
	// ErrUnavailable means the embedding backend could not be reached in time.
	ErrUnavailable = errors.New("face service unavailable")
)

// Store is the embedding boundary the rest of the system talks to. Enroll
// extracts and persists a reference embedding for a subject, Embed extracts
// one from a probe image, Lookup returns the stored reference.
type Store interface {
	Enroll(ctx context.Context, rollNo string, photo []byte) error
	Embed(ctx context.Context, photo []byte) (Vector, error)
	Lookup(ctx context.Context, rollNo string) (Vector, error)
	Delete(ctx context.Context, rollNo string) error
}

// Cosine returns the cosine similarity of two embeddings in [-1, 1].
// Mismatched dimensions or zero-magnitude vectors score 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
