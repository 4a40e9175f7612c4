// Command seedtables populates a development Supabase project with sample
// crowdfunding posts, loan posts, and profile rows.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env with SUPABASE_URL and keys")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no env file at %s, relying on the environment", *envFile)
	}

	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")
	if key == "" {
		key = os.Getenv("SUPABASE_ANON_KEY")
	}
	if url == "" || key == "" {
		log.Fatal("SUPABASE_URL and a key are required")
	}

	sb, err := client.New(client.Config{URL: url, AnonKey: key})
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx := context.Background()
	if err := seed(ctx, sb); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("seed complete")
}

func seed(ctx context.Context, sb *client.Client) error {
	profiles := []map[string]any{
		{"uid": "00000000-0000-0000-0000-000000000001", "email": "founder@example.com"},
		{"uid": "00000000-0000-0000-0000-000000000002", "email": "backer@example.com"},
	}
	if err := sb.From(domain.ProfileTable).Insert(ctx, profiles); err != nil {
		return err
	}

	posts := []domain.CrowdFundingPost{
		{
			CreatorID:           "00000000-0000-0000-0000-000000000001",
			Title:               "Neighborhood Bakery",
			BusinessName:        "Crust & Crumb",
			BusinessDescription: "A wood-fired bakery for the old town square.",
			TargetAmount:        15000,
		},
		{
			CreatorID:           "00000000-0000-0000-0000-000000000001",
			Title:               "Bicycle Repair Workshop",
			BusinessName:        "Spoke Works",
			BusinessDescription: "Tools, parts, and training for two mechanics.",
			TargetAmount:        8000,
		},
	}
	if err := sb.From(domain.CrowdFundingTable).Insert(ctx, posts); err != nil {
		return err
	}

	loans := []domain.LoanPost{
		{
			CreatorID:   "00000000-0000-0000-0000-000000000002",
			LoanAmount:  5000,
			LoanPurpose: "Inventory for the holiday season",
			Status:      "open",
		},
	}
	return sb.From(domain.LoanPostTable).Insert(ctx, loans)
}
