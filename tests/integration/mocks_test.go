//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// failureMarker in outgoing text makes the publisher stub reject the post.
const failureMarker = "force-failure"

// publisherStub fakes the per-platform publish endpoints. The platform is
// the request path; posts whose text carries failureMarker are rejected
// the way a real gateway failure surfaces.
type publisherStub struct {
	server *httptest.Server

	mu    sync.Mutex
	count map[string]int
}

func newPublisherStub() *publisherStub {
	s := &publisherStub{count: make(map[string]int)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *publisherStub) handle(w http.ResponseWriter, r *http.Request) {
	platform := strings.TrimPrefix(r.URL.Path, "/")

	var req struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	w.Header().Set("Content-Type", "application/json")

	if strings.Contains(req.Text, failureMarker) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "session expired, re-authenticate"})
		return
	}

	s.mu.Lock()
	s.count[platform]++
	n := s.count[platform]
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]string{
		"post_url": fmt.Sprintf("https://%s.example/post/%d", platform, n),
	})
}

func (s *publisherStub) URL() string { return s.server.URL }

func (s *publisherStub) Close() { s.server.Close() }

// Count returns how many posts the platform accepted.
func (s *publisherStub) Count(platform string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count[platform]
}

// generatorStub fakes the content generator. Every request yields two
// candidate options tagged with the requested format, exercising the
// option-selection path on generated candidates.
type generatorStub struct {
	server *httptest.Server

	mu      sync.Mutex
	formats []string
}

func newGeneratorStub() *generatorStub {
	s := &generatorStub{}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *generatorStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/generate" {
		http.NotFound(w, r)
		return
	}

	var input struct {
		Kind   string `json:"kind"`
		Format string `json:"format"`
	}
	_ = json.NewDecoder(r.Body).Decode(&input)

	s.mu.Lock()
	s.formats = append(s.formats, input.Format)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"title": "draft " + input.Format,
		"options": []map[string]string{
			{"text": "variant one in " + input.Format + " form", "voice_tag": "deadpan"},
			{"text": "variant two in " + input.Format + " form", "voice_tag": "warm"},
		},
	})
}

func (s *generatorStub) URL() string { return s.server.URL }

func (s *generatorStub) Close() { s.server.Close() }

// Formats returns the formats requested so far, in order.
func (s *generatorStub) Formats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.formats))
	copy(out, s.formats)
	return out
}

// voiceStub fakes the advisory voice checker with a fixed verdict.
type voiceStub struct {
	server *httptest.Server
}

func newVoiceStub() *voiceStub {
	s := &voiceStub{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/check" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"score":       0.87,
			"verdict":     "on-voice",
			"issues":      []string{},
			"suggestions": []string{"tighten the opening line"},
		})
	}))
	return s
}

func (s *voiceStub) URL() string { return s.server.URL }

func (s *voiceStub) Close() { s.server.Close() }
