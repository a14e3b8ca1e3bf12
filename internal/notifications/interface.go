package notifications

import "github.com/vkpulse/vkpulse/internal/models"

// Notifier is the contract for delivering run reports.
type Notifier interface {
	SendReport(report *models.Report) error
}
