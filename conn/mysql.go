package conn

import (
	"database/sql"
	"fmt"
	"time"

	"locktracker/config"

	"github.com/go-sql-driver/mysql"
)

// NewMySQL opens the bets database, creating it first when it does not exist.
func NewMySQL(c config.DBConfig) (*sql.DB, error) {
	// Ensure database exists by connecting without DB and creating it if needed
	adminDB, err := sql.Open("mysql", dsn(c, ""))
	if err != nil {
		return nil, err
	}
	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if _, err := adminDB.Exec("CREATE DATABASE IF NOT EXISTS `" + c.Name + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		adminDB.Close()
		return nil, fmt.Errorf("create database %s: %w", c.Name, err)
	}
	adminDB.Close()

	db, err := sql.Open("mysql", dsn(c, c.Name))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func dsn(c config.DBConfig, name string) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + c.Port
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.Local
	return mc.FormatDSN()
}
