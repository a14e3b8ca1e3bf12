package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

func main() {
	fmt.Println("🔍 VK Sentiment Service - API Connectivity Test")
	fmt.Println("===============================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.VKAccessToken == "" {
		log.Fatal("VK_ACCESS_TOKEN is not set; add it to .env and retry")
	}

	groups := cfg.Groups
	if len(os.Args) > 1 {
		groups = os.Args[1:]
	}
	if len(groups) == 0 {
		log.Fatal("No groups to test; set VK_GROUPS or pass identifiers as arguments")
	}

	client := vkapi.NewClient(vkapi.Options{
		Token:           cfg.VKAccessToken,
		Version:         cfg.VKAPIVersion,
		BaseURL:         cfg.VKAPIBaseURL,
		MaxRetries:      cfg.MaxRetries,
		BaseRetryDelay:  cfg.BaseRetryDelay,
		RateLimitDelay:  cfg.RateLimitDelay,
		PolitenessDelay: cfg.PolitenessDelay,
		RequestTimeout:  cfg.RequestTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("\n📡 Testing VK groups...")
	fmt.Println(strings.Repeat("-", 40))

	for _, group := range groups {
		testGroup(ctx, client, group)
	}

	fmt.Println("\n✅ VK connectivity test completed!")
}

func testGroup(ctx context.Context, client *vkapi.Client, identifier string) {
	cleaned := vkapi.CleanGroupIdentifier(identifier)
	fmt.Printf("🔸 Testing %s... ", cleaned)

	groups, err := client.GroupsGetByID(ctx, cleaned)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	info := groups[0]
	page, err := client.WallGet(ctx, -info.ID, 5, 0)
	if err != nil {
		fmt.Printf("❌ wall.get ERROR: %v\n", err)
		return
	}

	fmt.Printf("✅ SUCCESS (%s, %d posts on the wall)\n", info.Name, page.Count)

	if len(page.Items) > 0 {
		preview := []rune(page.Items[0].Text)
		if len(preview) > 80 {
			preview = append(preview[:80], []rune("...")...)
		}
		fmt.Printf("   📝 Latest post: %q\n", strings.ReplaceAll(string(preview), "\n", " "))
	}
}
