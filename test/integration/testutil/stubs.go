//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/retroarcade/hiscore/internal/domain"
)

// StubAI serves the two prompt functions over HTTP. Responses can be swapped
// per test; the calls it received are recorded.
type StubAI struct {
	server *httptest.Server

	mu          sync.Mutex
	fraud       func(domain.FraudCheckRequest) (int, any)
	verify      func(domain.VerificationRequest) (int, any)
	fraudCalls  []domain.FraudCheckRequest
	verifyCalls []domain.VerificationRequest
}

// NewStubAI starts a stub that clears every submission and verifies every image.
func NewStubAI(t *testing.T) *StubAI {
	t.Helper()
	s := &StubAI{
		fraud: func(domain.FraudCheckRequest) (int, any) {
			return http.StatusOK, domain.FraudAssessment{Reason: "in line with history", Confidence: 90, SuggestedAction: "approve"}
		},
		verify: func(req domain.VerificationRequest) (int, any) {
			score := float64(req.EnteredScore)
			return http.StatusOK, domain.VerificationVerdict{IsVerified: true, ImageDetectedScore: &score, Confidence: 0.9}
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/functions/fraud-check", func(w http.ResponseWriter, r *http.Request) {
		var req domain.FraudCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.fraudCalls = append(s.fraudCalls, req)
		fn := s.fraud
		s.mu.Unlock()
		status, body := fn(req)
		writeStub(w, status, body)
	})
	mux.HandleFunc("POST /v1/functions/verify-score-image", func(w http.ResponseWriter, r *http.Request) {
		var req domain.VerificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.verifyCalls = append(s.verifyCalls, req)
		fn := s.verify
		s.mu.Unlock()
		status, body := fn(req)
		writeStub(w, status, body)
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func writeStub(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// URL is the base URL to hand to the GenAI client.
func (s *StubAI) URL() string { return s.server.URL }

// OnFraud replaces the fraud-check response.
func (s *StubAI) OnFraud(fn func(domain.FraudCheckRequest) (int, any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fraud = fn
}

// OnVerify replaces the verify-score-image response.
func (s *StubAI) OnVerify(fn func(domain.VerificationRequest) (int, any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verify = fn
}

// FraudCalls returns the fraud-check requests received so far.
func (s *StubAI) FraudCalls() []domain.FraudCheckRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FraudCheckRequest(nil), s.fraudCalls...)
}

// VerifyCalls returns the verify-score-image requests received so far.
func (s *StubAI) VerifyCalls() []domain.VerificationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.VerificationRequest(nil), s.verifyCalls...)
}

type storedObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps proof images in memory and serves them from a local CDN.
type MemoryStore struct {
	cdn *httptest.Server

	mu      sync.Mutex
	objects map[string]storedObject
}

// NewMemoryStore starts the CDN that returns stored objects by key.
func NewMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	m := &MemoryStore{objects: make(map[string]storedObject)}
	m.cdn = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		m.mu.Lock()
		obj, ok := m.objects[key]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Write(obj.data)
	}))
	t.Cleanup(m.cdn.Close)
	return m
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{data: append([]byte(nil), data...), contentType: contentType}
	return fmt.Sprintf("%s/%s", m.cdn.URL, key), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists the stored object keys.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Drop removes an object so its URL starts returning 404.
func (m *MemoryStore) Drop(imageURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, strings.TrimPrefix(imageURL, m.cdn.URL+"/"))
}
