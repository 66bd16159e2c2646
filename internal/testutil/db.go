// FILE: internal/testutil/db.go
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The production schema leans on postgres features (gen_random_uuid(),
// enum types) that sqlite cannot express, so the test schema is written by
// hand instead of running AutoMigrate against the models. Column names and
// constraints must stay in lockstep with internal/model.
var testSchema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		status TEXT NOT NULL DEFAULT 'active',
		stripe_customer_id TEXT UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE subscription_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		price_amount INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'usd',
		interval TEXT NOT NULL,
		stripe_price_id TEXT NOT NULL,
		is_most_popular BOOLEAN DEFAULT 0,
		is_active BOOLEAN DEFAULT 1,
		sort_order INTEGER DEFAULT 0
	)`,
	`CREATE TABLE subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		stripe_subscription_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		cancel_at_period_end BOOLEAN DEFAULT 0,
		canceled_at DATETIME,
		trial_start DATETIME,
		trial_end DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subscription_id TEXT,
		stripe_payment_id TEXT NOT NULL UNIQUE,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		receipt_url TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE user_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		description TEXT,
		metadata TEXT,
		created_at DATETIME
	)`,
}

// SetupTestDB opens an in-memory sqlite database and creates the schema.
// The shared-cache DSN is keyed by test name: plain ":memory:" gives every
// pooled connection its own empty database, which breaks transactions.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	// Keep a single connection alive for the lifetime of the test so the
	// shared in-memory database is not dropped between requests.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("Failed to create test schema: %v", err)
		}
	}

	return db
}
