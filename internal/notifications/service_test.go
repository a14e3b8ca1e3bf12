package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
)

func sampleReport(standings int) *models.Report {
	report := &models.Report{
		RunID:            "run-1",
		GeneratedAt:      time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC),
		WindowStart:      "2024-05-01",
		WindowEnd:        "2024-05-07",
		Groups:           []string{"group_one", "group_two"},
		RecordsCollected: 12,
		TextsAnalyzed:    30,
		TotalMentions:    7,
	}
	for i := 0; i < standings; i++ {
		report.Standings = append(report.Standings, models.EntityStanding{
			Entity:  fmt.Sprintf("Entity %d", i),
			Total:   standings - i,
			ByLabel: map[string]int{"POS": standings - i, "NEG": 0, "NEU": 0, "UNKNOWN": 0},
		})
	}
	return report
}

func TestSendReportPostsWebhookPayload(t *testing.T) {
	var got webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL})
	err := svc.SendReport(sampleReport(12))

	require.NoError(t, err)
	assert.Equal(t, "VK Sentiment Report", got.Title)
	assert.Equal(t, "2024-05-01", got.WindowStart)
	assert.Equal(t, 7, got.TotalMentions)
	assert.Len(t, got.Standings, 10, "webhook carries only the top entities")
	assert.Equal(t, "Entity 0", got.Standings[0].Entity)
}

func TestSendReportWebhookFailureIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL})
	err := svc.SendReport(sampleReport(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook")
}

func TestSendReportNoChannelsConfigured(t *testing.T) {
	svc := NewService(&config.Config{})
	assert.NoError(t, svc.SendReport(sampleReport(2)))
}

func TestBuildEmailBodies(t *testing.T) {
	svc := NewService(&config.Config{})
	report := sampleReport(3)

	html, err := svc.buildEmailHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "Entity 0")
	assert.Contains(t, html, "2024-05-01")

	text := svc.buildEmailText(report)
	assert.Contains(t, text, "TOP ENTITIES")
	assert.Contains(t, text, "1. Entity 0 (3 mentions)")
	assert.Contains(t, text, "POS: 3")
}
