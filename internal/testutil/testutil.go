// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"anoa.com/forumboard/internal/bootstrap"
	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/pkg/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database that lives for the duration of t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "forumboard.db"), 1)
	require.NoError(t, err)
	require.NoError(t, bootstrap.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, username string) entity.User {
	t.Helper()

	u := entity.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.WithContext(context.Background()).Create(&u).Error)
	return u
}

func CreateThread(t testing.TB, db *gorm.DB, author entity.User, title string) entity.Thread {
	t.Helper()

	th := entity.Thread{AuthorID: author.ID, Title: title, Content: title + " content", ModerationStatus: entity.ModerationApproved}
	require.NoError(t, db.Omit("Author").Create(&th).Error)
	th.Author = author
	return th
}
