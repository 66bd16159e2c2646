package main

import (
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"subtrack-be/internal/model"
	"subtrack-be/pkg/database"
)

// Default plan catalog. Stripe price ids come from the dashboard and are
// injected via env so staging and production can diverge.
func defaultPlans() []model.SubscriptionPlan {
	return []model.SubscriptionPlan{
		{
			Id:            uuid.New(),
			Name:          "Starter",
			Slug:          "starter",
			Description:   "For individuals getting started",
			PriceAmount:   999,
			Currency:      "usd",
			Interval:      "month",
			StripePriceId: os.Getenv("STRIPE_PRICE_STARTER_MONTHLY"),
			IsActive:      true,
			SortOrder:     1,
		},
		{
			Id:            uuid.New(),
			Name:          "Pro",
			Slug:          "pro",
			Description:   "For growing teams",
			PriceAmount:   2999,
			Currency:      "usd",
			Interval:      "month",
			StripePriceId: os.Getenv("STRIPE_PRICE_PRO_MONTHLY"),
			IsMostPopular: true,
			IsActive:      true,
			SortOrder:     2,
		},
		{
			Id:            uuid.New(),
			Name:          "Pro Annual",
			Slug:          "pro-annual",
			Description:   "Pro, billed yearly",
			PriceAmount:   29990,
			Currency:      "usd",
			Interval:      "year",
			StripePriceId: os.Getenv("STRIPE_PRICE_PRO_YEARLY"),
			IsActive:      true,
			SortOrder:     3,
		},
		{
			Id:            uuid.New(),
			Name:          "Enterprise",
			Slug:          "enterprise",
			Description:   "For large organizations",
			PriceAmount:   9999,
			Currency:      "usd",
			Interval:      "month",
			StripePriceId: os.Getenv("STRIPE_PRICE_ENTERPRISE_MONTHLY"),
			IsActive:      true,
			SortOrder:     4,
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Seeding subscription plans...")

	for _, plan := range defaultPlans() {
		var count int64
		if err := db.Model(&model.SubscriptionPlan{}).Where("slug = ?", plan.Slug).Count(&count).Error; err != nil {
			color.Red("Failed to check plan %s: %v", plan.Slug, err)
			continue
		}
		if count > 0 {
			color.Yellow("Plan %s already exists, skipping", plan.Slug)
			continue
		}

		if err := db.Create(&plan).Error; err != nil {
			color.Red("Failed to seed plan %s: %v", plan.Slug, err)
			continue
		}
		color.Green("Seeded plan: %s", plan.Name)
	}

	color.Green("✅ Seeding complete.")
}
