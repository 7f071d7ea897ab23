package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&User{},
		&Team{},
		&Membership{},
		&Device{},
		&Backlog{},
		&Collection{},
		&List{},
		&Item{},
	)
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *User {
	t.Helper()

	user := User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// seedTeam creates a main team through the same path production uses.
func seedTeam(t *testing.T, db *gorm.DB, creator *User, name string) *Team {
	t.Helper()

	team, err := CreateTeam(db, creator, name, "")
	require.NoError(t, err)
	return team
}

func seedGroup(t *testing.T, db *gorm.DB, parent *Team, creator *User, name string) *Team {
	t.Helper()

	group, err := CreateGroup(db, parent, creator, name, "")
	require.NoError(t, err)
	return group
}
