package migrations

import (
	"database/sql"
	"fmt"
)

var db *sql.DB

// Init sets the DB connection used by Migrate.
func Init(database *sql.DB) {
	db = database
}

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(191) NOT NULL UNIQUE,
		password_hash VARCHAR(191) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		token CHAR(36) PRIMARY KEY,
		user_id INT NOT NULL,
		expires_at DATETIME NOT NULL,
		used TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS bets (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		date VARCHAR(10) NOT NULL,
		sport VARCHAR(64) NOT NULL,
		matchup VARCHAR(255) NOT NULL,
		bet_type VARCHAR(64) NOT NULL,
		bet_description VARCHAR(512) NOT NULL,
		odds INT NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		sportsbook VARCHAR(64) NOT NULL DEFAULT '',
		result VARCHAR(16) NOT NULL DEFAULT 'pending',
		profit DECIMAL(18,6) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_bets_user_created (user_id, created_at),
		INDEX idx_bets_user_dup (user_id, matchup(100), amount),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		stripe_customer_id VARCHAR(64) NOT NULL DEFAULT '',
		stripe_subscription_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'inactive',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_subscriptions_stripe (stripe_subscription_id),
		INDEX idx_subscriptions_user (user_id, status),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
}

// Migrate creates required tables if they do not exist
func Migrate() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
