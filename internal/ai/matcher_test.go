// internal/ai/matcher_test.go
package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func newTestMatcher(t *testing.T, handler http.HandlerFunc) *GenAIMatcher {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.APIsConfig{}
	cfg.GenAI.BaseURL = srv.URL
	cfg.GenAI.Timeout = 2000
	return NewGenAIMatcher(cfg, logger.NewTestLogger(t))
}

func TestGenAIMatcher_MatchJob(t *testing.T) {
	m := newTestMatcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/match", r.URL.Path)
		w.Write([]byte(`{"score": 8.5}`))
	})

	score := m.MatchJob(context.Background(), "resume", "description", "title")
	assert.Equal(t, 8.5, score)
}

func TestGenAIMatcher_ClampsOutOfRangeScores(t *testing.T) {
	m := newTestMatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 42}`))
	})

	assert.Equal(t, 10.0, m.MatchJob(context.Background(), "r", "d", "t"))
}

func TestGenAIMatcher_APIFailureReturnsZero(t *testing.T) {
	m := newTestMatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	assert.Zero(t, m.MatchJob(context.Background(), "r", "d", "t"))
}

func TestGenAIMatcher_UnconfiguredReturnsZero(t *testing.T) {
	m := NewGenAIMatcher(config.APIsConfig{}, logger.NewNoOpLogger())

	assert.Zero(t, m.MatchJob(context.Background(), "r", "d", "t"))
}
