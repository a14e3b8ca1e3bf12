package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
)

// Service delivers run reports via the configured channels: a generic JSON
// webhook and SMTP email.
type Service struct {
	config *config.Config
	client *resty.Client
}

var _ Notifier = (*Service)(nil)

// webhookMessage is the JSON payload posted to the report webhook.
type webhookMessage struct {
	Title         string                  `json:"title"`
	Text          string                  `json:"text"`
	WindowStart   string                  `json:"window_start"`
	WindowEnd     string                  `json:"window_end"`
	Groups        []string                `json:"groups"`
	TotalMentions int                     `json:"total_mentions"`
	Standings     []models.EntityStanding `json:"standings"`
}

// NewService creates a notification service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendReport sends the report through every configured channel and collects
// per-channel failures so one broken channel does not silence the others.
func (s *Service) SendReport(report *models.Report) error {
	var errors []string

	if s.config.WebhookURL != "" {
		if err := s.sendWebhook(report); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Info("Successfully sent report to webhook")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendWebhook(report *models.Report) error {
	message := s.buildWebhookMessage(report)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildWebhookMessage(report *models.Report) *webhookMessage {
	return &webhookMessage{
		Title: "VK Sentiment Report",
		Text: fmt.Sprintf("Found %d mentions of %d entities between %s and %s",
			report.TotalMentions, len(report.Standings), report.WindowStart, report.WindowEnd),
		WindowStart:   report.WindowStart,
		WindowEnd:     report.WindowEnd,
		Groups:        report.Groups,
		TotalMentions: report.TotalMentions,
		Standings:     topStandings(report.Standings, 10),
	}
}

func topStandings(standings []models.EntityStanding, limit int) []models.EntityStanding {
	if len(standings) < limit {
		limit = len(standings)
	}
	return standings[:limit]
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("VK Sentiment Report %s .. %s (%d mentions)",
		report.WindowStart, report.WindowEnd, report.TotalMentions)

	htmlBody, err := s.buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := s.buildEmailText(report)

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

type emailView struct {
	*models.Report
	TopStandings []models.EntityStanding
}

func (s *Service) buildEmailHTML(report *models.Report) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>VK Sentiment Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #4a76a8; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #4a76a8; color: white; }
    </style>
</head>
<body>
    <div class="header">
        <h1>VK Sentiment Report</h1>
        <p>Window {{.WindowStart}} .. {{.WindowEnd}}, generated {{.GeneratedAt.Format "January 2, 2006 at 15:04 MST"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Groups:</strong> {{range $i, $g := .Groups}}{{if $i}}, {{end}}{{$g}}{{end}}</p>
        <p><strong>Records collected:</strong> {{.RecordsCollected}}</p>
        <p><strong>Texts analyzed:</strong> {{.TextsAnalyzed}}</p>
        <p><strong>Total mentions:</strong> {{.TotalMentions}}</p>
    </div>

    {{if .TopStandings}}
    <h2>Top Entities</h2>
    <table>
        <tr><th>Entity</th><th>Total</th><th>By label</th></tr>
        {{range .TopStandings}}
        <tr>
            <td>{{.Entity}}</td>
            <td>{{.Total}}</td>
            <td>{{range $label, $count := .ByLabel}}{{$label}}: {{$count}} {{end}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}

    <hr>
    <p><small>This report was generated automatically.</small></p>
</body>
</html>
`

	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, emailView{Report: report, TopStandings: topStandings(report.Standings, 10)}); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString("VK Sentiment Report\n")
	text.WriteString(fmt.Sprintf("Window: %s .. %s\n", report.WindowStart, report.WindowEnd))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Groups: %s\n", strings.Join(report.Groups, ", ")))
	text.WriteString(fmt.Sprintf("Records collected: %d\n", report.RecordsCollected))
	text.WriteString(fmt.Sprintf("Texts analyzed: %d\n", report.TextsAnalyzed))
	text.WriteString(fmt.Sprintf("Total mentions: %d\n", report.TotalMentions))

	if len(report.Standings) > 0 {
		text.WriteString("\nTOP ENTITIES\n")
		text.WriteString("============\n")

		for i, standing := range topStandings(report.Standings, 10) {
			text.WriteString(fmt.Sprintf("\n%d. %s (%d mentions)\n", i+1, standing.Entity, standing.Total))
			labels := make([]string, 0, len(standing.ByLabel))
			for label, count := range standing.ByLabel {
				labels = append(labels, fmt.Sprintf("%s: %d", label, count))
			}
			sort.Strings(labels)
			text.WriteString(fmt.Sprintf("   %s\n", strings.Join(labels, " | ")))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically.\n")

	return text.String()
}
