// Package ai scores job postings against a resume through an external GenAI
// API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"applyflow/internal/common/config"
	commonhttp "applyflow/internal/common/http"
	"applyflow/internal/common/logger"
)

// GenAIMatcher calls the GenAI scoring endpoint. Any failure degrades to a
// zero score; scoring is advisory and must never block a listing.
type GenAIMatcher struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
	log     logger.Logger
}

func NewGenAIMatcher(cfg config.APIsConfig, log logger.Logger) *GenAIMatcher {
	return &GenAIMatcher{
		client:  commonhttp.NewClient(config.GetDuration(cfg.GenAI.Timeout)),
		baseURL: cfg.GenAI.BaseURL,
		apiKey:  cfg.GenAI.APIKey,
		log:     log,
	}
}

type matchRequest struct {
	ResumeText  string `json:"resumeText"`
	Description string `json:"description"`
	Title       string `json:"title"`
}

type matchResponse struct {
	Score float64 `json:"score"`
}

// MatchJob returns a score in [0,10]. API failure, a bad response or a
// missing configuration all come back as 0.
func (m *GenAIMatcher) MatchJob(ctx context.Context, resumeText, description, title string) float64 {
	if m.baseURL == "" {
		return 0
	}

	body, err := json.Marshal(matchRequest{
		ResumeText:  resumeText,
		Description: description,
		Title:       title,
	})
	if err != nil {
		return 0
	}

	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/v1/match", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.DoWithContext(ctx, req)
	if err != nil {
		m.log.Warn("match scoring call failed", map[string]interface{}{
			"error": err.Error(),
		})
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.log.Warn("match scoring API error", map[string]interface{}{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
		return 0
	}

	var parsed matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0
	}

	return clampScore(parsed.Score)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
