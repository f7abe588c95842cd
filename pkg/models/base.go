package models

import (
	"gorm.io/gorm"
)

// MigrationFunc migrates all tables this service owns.
func MigrationFunc(conn *gorm.DB) error {
	// use conn.Debug().AutoMigrate(...) to enable debugging
	return conn.AutoMigrate(&User{}, &Conversation{}, &Message{})
}
