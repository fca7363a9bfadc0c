package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStore calls the face recognition microservice. Timeouts and transport
// failures surface as ErrUnavailable; they are never downgraded to a manual
// outcome by this layer.
type RemoteStore struct {
	BaseURL string
	HTTP    *http.Client
}

// NewRemoteStore creates a client with a configurable timeout.
func NewRemoteStore(baseURL string, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Enroll sends a reference photo for a subject to the service gallery.
func (c *RemoteStore) Enroll(ctx context.Context, rollNo string, photo []byte) error {
	body, _ := json.Marshal(map[string]string{
		"roll_no":   rollNo,
		"image_b64": base64.StdEncoding.EncodeToString(photo),
	})
	resp, err := c.post(ctx, "/enroll", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return c.mapStatus(resp)
	}
	return nil
}

// Embed extracts an embedding from a probe photo.
func (c *RemoteStore) Embed(ctx context.Context, photo []byte) (Vector, error) {
	body, _ := json.Marshal(map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(photo),
	})
	resp, err := c.post(ctx, "/embed", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, c.mapStatus(resp)
	}
	var out struct {
		Embedding Vector `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, ErrNoFaceDetected
	}
	return out.Embedding, nil
}

// Lookup fetches the stored embedding for a subject.
func (c *RemoteStore) Lookup(ctx context.Context, rollNo string) (Vector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/embeddings/"+url.PathEscape(rollNo), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, c.mapStatus(resp)
	}
	var out struct {
		Embedding Vector `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, ErrNotEnrolled
	}
	return out.Embedding, nil
}

// Delete removes a subject from the service gallery. A missing subject is a no-op.
func (c *RemoteStore) Delete(ctx context.Context, rollNo string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/embeddings/"+url.PathEscape(rollNo), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode < 300 {
		return nil
	}
	return c.mapStatus(resp)
}

// Health checks whether the face service answers.
func (c *RemoteStore) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health status %s", ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *RemoteStore) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *RemoteStore) do(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *RemoteStore) mapStatus(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.Status)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotEnrolled
	}
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)
	switch payload.Error {
	case "no_face_detected":
		return ErrNoFaceDetected
	case "invalid_image":
		return ErrInvalidImage
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return ErrNoFaceDetected
	}
	return fmt.Errorf("face service error %s: %s", resp.Status, string(raw))
}
