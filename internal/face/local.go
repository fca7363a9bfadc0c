package face

import (
	"bytes"
	"context"
	"image"
	"math"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Embedder extracts an embedding from raw image bytes.
type Embedder interface {
	Embed(photo []byte) (Vector, error)
}

// LocalStore keeps enrolled embeddings in process memory, guarded by a
// read-write lock. It serves deployments that run without the remote
// recognition service.
type LocalStore struct {
	mu       sync.RWMutex
	gallery  map[string]Vector
	embedder Embedder
}

// NewLocalStore builds a store around the given embedder; a nil embedder
// falls back to the brightness-grid default.
func NewLocalStore(e Embedder) *LocalStore {
	if e == nil {
		e = GridEmbedder{}
	}
	return &LocalStore{gallery: make(map[string]Vector), embedder: e}
}

// Enroll extracts and stores the reference embedding for a subject,
// replacing any previous one.
func (s *LocalStore) Enroll(ctx context.Context, rollNo string, photo []byte) error {
	vec, err := s.embedder.Embed(photo)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gallery[rollNo] = vec
	s.mu.Unlock()
	return nil
}

// Embed extracts an embedding from a probe image.
func (s *LocalStore) Embed(ctx context.Context, photo []byte) (Vector, error) {
	return s.embedder.Embed(photo)
}

// Lookup returns a copy of the stored embedding for a subject.
func (s *LocalStore) Lookup(ctx context.Context, rollNo string) (Vector, error) {
	s.mu.RLock()
	vec, ok := s.gallery[rollNo]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotEnrolled
	}
	out := make(Vector, len(vec))
	copy(out, vec)
	return out, nil
}

// Delete removes a subject's embedding. Deleting an absent subject is a no-op.
func (s *LocalStore) Delete(ctx context.Context, rollNo string) error {
	s.mu.Lock()
	delete(s.gallery, rollNo)
	s.mu.Unlock()
	return nil
}

const (
	gridCols = 16
	gridRows = 8
)

// GridEmbedder reduces an image to a mean-centered, L2-normalized brightness
// grid. Frames with no structure (uniform color, blank captures) fail with
// ErrNoFaceDetected.
type GridEmbedder struct{}

// Embed implements Embedder.
func (GridEmbedder) Embed(photo []byte) (Vector, error) {
	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, ErrInvalidImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrInvalidImage
	}

	vec := make(Vector, gridCols*gridRows)
	counts := make([]int, gridCols*gridRows)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535.0
			cx := (x - b.Min.X) * gridCols / b.Dx()
			cy := (y - b.Min.Y) * gridRows / b.Dy()
			idx := cy*gridCols + cx
			vec[idx] += float32(lum)
			counts[idx]++
		}
	}
	for i := range vec {
		if counts[i] > 0 {
			vec[i] /= float32(counts[i])
		}
	}

	var mean float64
	for _, v := range vec {
		mean += float64(v)
	}
	mean /= float64(len(vec))

	var norm float64
	for i := range vec {
		vec[i] -= float32(mean)
		norm += float64(vec[i]) * float64(vec[i])
	}
	if math.Sqrt(norm) < 1e-3 {
		return nil, ErrNoFaceDetected
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
