package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// SegmentServer is an httptest remote segment store. Files are served from
// the root path by name; every request is recorded.
type SegmentServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	requests []string
}

// NewSegmentServer starts a server closed when the test completes.
func NewSegmentServer(t *testing.T) *SegmentServer {
	t.Helper()

	s := &SegmentServer{files: make(map[string][]byte)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	t.Cleanup(s.Close)

	return s
}

// Put publishes a file under name.
func (s *SegmentServer) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = data
}

// Requests returns the requested names in order.
func (s *SegmentServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

func (s *SegmentServer) serve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.requests = append(s.requests, name)
	data, ok := s.files[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

// SegmentPayload returns a payload large enough to pass validation.
func SegmentPayload() []byte {
	return []byte(strings.Repeat("SE", 4096))
}
