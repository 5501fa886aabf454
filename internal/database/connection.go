// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Store{},
		&models.User{},
		&models.Product{},
		&models.Customer{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Transaction{},
		&models.WebhookEvent{},
		&models.RepairTicket{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_store_role ON users(store_id, role)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_store ON products(store_id)",
		"CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		// Customer indexes
		"CREATE INDEX IF NOT EXISTS idx_customers_store ON customers(store_id)",
		"CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email)",

		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_store_status ON sales(store_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_sales_cashier ON sales(cashier_id)",
		"CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)",

		// Transaction indexes: correlation lookups hit these on every webhook
		"CREATE INDEX IF NOT EXISTS idx_transactions_store_status ON transactions(store_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_capture ON transactions(gateway, gateway_capture_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(gateway, gateway_order_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(gateway, reference_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_sale ON transactions(sale_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_parent ON transactions(parent_transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)",

		// Webhook event indexes
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_transaction ON webhook_events(transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_created ON webhook_events(created_at DESC)",

		// Repair indexes
		"CREATE INDEX IF NOT EXISTS idx_repair_tickets_store_status ON repair_tickets(store_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_repair_tickets_customer ON repair_tickets(customer_id)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",

		// Full-text search indexes
		"CREATE INDEX IF NOT EXISTS idx_products_search ON products USING GIN(to_tsvector('english', name || ' ' || coalesce(description, '')))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	var storeCount int64
	db.Model(&models.Store{}).Count(&storeCount)

	if storeCount == 0 {
		store := &models.Store{
			Name:     "Main Street Store",
			Email:    "owner@storelink.example",
			Currency: "USD",
			Settings: models.JSONB{
				"tax_rate":        0.0825,
				"receipt_footer":  "Thank you for your business!",
				"default_locale":  "en",
				"refunds_allowed": true,
			},
		}
		if err := db.Create(store).Error; err != nil {
			return fmt.Errorf("failed to create default store: %w", err)
		}

		admin := &models.User{
			StoreID:  store.ID,
			Username: "admin",
			Email:    "admin@storelink.example",
			Role:     models.UserRoleAdmin,
			Status:   models.UserStatusActive,
		}
		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}
		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default store and admin user created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
