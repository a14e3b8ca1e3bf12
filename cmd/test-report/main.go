package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vkpulse/vkpulse/internal/analysis"
	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
	"github.com/vkpulse/vkpulse/internal/sentiment"
	"github.com/vkpulse/vkpulse/internal/storage"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

// sampleWall serves canned VK data so the full pipeline can run offline.
type sampleWall struct {
	posts    []vkapi.Post
	comments map[int64][]vkapi.Comment
}

func (w *sampleWall) GroupsGetByID(ctx context.Context, identifier string) ([]vkapi.GroupInfo, error) {
	return []vkapi.GroupInfo{{ID: 100, Name: "Городские новости", ScreenName: identifier}}, nil
}

func (w *sampleWall) WallGet(ctx context.Context, ownerID int64, count, offset int) (*vkapi.WallPage, error) {
	if offset > 0 {
		return &vkapi.WallPage{Count: len(w.posts)}, nil
	}
	return &vkapi.WallPage{Count: len(w.posts), Items: w.posts}, nil
}

func (w *sampleWall) WallGetComments(ctx context.Context, ownerID, postID int64, count, offset int) (*vkapi.CommentsPage, error) {
	items := w.comments[postID]
	if offset > 0 {
		return &vkapi.CommentsPage{Count: len(items)}, nil
	}
	return &vkapi.CommentsPage{Count: len(items), Items: items}, nil
}

// terminalNotifier prints the report and saves it as JSON.
type terminalNotifier struct{}

func (t *terminalNotifier) SendReport(report *models.Report) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 VK SENTIMENT REPORT")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("📅 Window: %s .. %s\n", report.WindowStart, report.WindowEnd)
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("📈 Records collected: %d | Texts analyzed: %d | Mentions: %d\n",
		report.RecordsCollected, report.TextsAnalyzed, report.TotalMentions)

	fmt.Println("\n🏆 Standings:")
	for i, standing := range report.Standings {
		fmt.Printf("\n   %d. %s (%d mentions)\n", i+1, standing.Entity, standing.Total)
		for _, label := range []string{"POS", "NEG", "NEU", "UNKNOWN"} {
			emoji := "😐"
			switch label {
			case "POS":
				emoji = "😊"
			case "NEG":
				emoji = "😞"
			case "UNKNOWN":
				emoji = "❓"
			}
			fmt.Printf("      %s %-8s %d\n", emoji, label+":", standing.ByLabel[label])
		}
	}

	if err := t.saveReportToFile(report); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save to file: %v\n", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	return nil
}

func (t *terminalNotifier) saveReportToFile(report *models.Report) error {
	dir := "test_output"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	timestamp := report.GeneratedAt.Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("vk_sentiment_report_%s.json", timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return err
	}

	fmt.Printf("\n💾 Report saved to: %s\n", filename)
	return nil
}

func sampleData() *sampleWall {
	now := time.Now()
	return &sampleWall{
		posts: []vkapi.Post{
			{
				ID: 3, OwnerID: -100, Date: now.Add(-2 * time.Hour).Unix(),
				Text:     "Иванов отлично выступил на открытии нового парка, спасибо за праздник!",
				Comments: &vkapi.CommentsInfo{Count: 2},
			},
			{
				ID: 2, OwnerID: -100, Date: now.Add(-20 * time.Hour).Unix(),
				Text: "Петров прокомментировал ремонт дорог в центре города.",
			},
			{
				ID: 1, OwnerID: -100, Date: now.Add(-40 * time.Hour).Unix(),
				Text:     "Жители жалуются: Петров опять провалил сроки, это просто позор.",
				Comments: &vkapi.CommentsInfo{Count: 1},
			},
		},
		comments: map[int64][]vkapi.Comment{
			3: {
				{ID: 31, FromID: 501, Date: now.Add(-1 * time.Hour).Unix(), Text: "Иванов молодец, так держать"},
				{ID: 32, FromID: 502, Date: now.Add(-30 * time.Minute).Unix(), Text: "Парк получился супер"},
			},
			1: {
				{ID: 11, FromID: 503, Date: now.Add(-39 * time.Hour).Unix(), Text: "Петров ужасно работает"},
			},
		},
	}
}

func main() {
	fmt.Println("🤖 VK Sentiment Service - Test Report Generator")
	fmt.Println("===============================================")

	cfg := &config.Config{
		VKAccessToken:     "offline-test-token",
		DataDir:           "test_output",
		TextPreviewLength: 300,
		SentimentLabels:   []string{"POS", "NEG", "NEU"},
		PostsChunkSize:    100,
		CommentsChunkSize: 100,
		GroupConcurrency:  4,
		WindowDays:        7,
	}

	archive, err := storage.NewLocalStore(filepath.Join("test_output", "archive"))
	if err != nil {
		log.Fatalf("Failed to prepare archive: %v", err)
	}

	model := sentiment.NewLexicon([]string{"Иванов", "Петров"})
	service := analysis.NewService(cfg, sampleData(), model, archive, &terminalNotifier{})

	fmt.Println("\n⚙️  Running the full pipeline on sample data...")

	end := time.Now()
	start := end.AddDate(0, 0, -6)
	result, err := service.RunFullAnalysis(context.Background(),
		"gorod_news", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		log.Fatalf("Sample run failed: %v", err)
	}

	fmt.Printf("\n✅ Run %s finished in %s\n", result.RunID, result.Duration)
	fmt.Printf("   📁 Collected data: %s\n", result.StorePath)
	if result.MentionLogPath != "" {
		fmt.Printf("   📁 Mention log:    %s\n", result.MentionLogPath)
	}
}
