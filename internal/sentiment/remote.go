package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/models"
)

// Remote sends texts to an external inference service that runs entity
// extraction and entity-level sentiment in one pass and returns the
// judgments per text.
type Remote struct {
	client *resty.Client
	url    string
}

var _ Model = (*Remote)(nil)

// NewRemote creates a client for the inference service at serviceURL.
// An empty token disables the Authorization header.
func NewRemote(serviceURL, token string, timeout time.Duration) *Remote {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Remote{client: client, url: serviceURL}
}

func (r *Remote) Name() string {
	return "remote"
}

type analyzeRequest struct {
	Texts []string `json:"texts"`
}

type analyzeResponse struct {
	Results [][]models.MentionJudgment `json:"results"`
}

// Analyze posts the batch and validates that the service answered with
// exactly one judgment list per text.
func (r *Remote) Analyze(ctx context.Context, texts []string) ([][]models.MentionJudgment, error) {
	if len(texts) == 0 {
		return [][]models.MentionJudgment{}, nil
	}

	var out analyzeResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(analyzeRequest{Texts: texts}).
		SetResult(&out).
		Post(r.url)
	if err != nil {
		return nil, fmt.Errorf("calling sentiment service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("sentiment service returned status %d", resp.StatusCode())
	}
	if len(out.Results) != len(texts) {
		return nil, fmt.Errorf("sentiment service returned %d result lists for %d texts",
			len(out.Results), len(texts))
	}

	logrus.Debugf("Sentiment service scored %d texts", len(texts))
	return out.Results, nil
}
