package bootstrap

import (
	"log/slog"
	"path/filepath"
	"testing"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "seed.db"), 1)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestSeedForumBotIsIdempotent(t *testing.T) {
	db := newDB(t)
	botID := uuid.New()

	require.NoError(t, SeedForumBot(db, botID, slog.Default()))
	require.NoError(t, SeedForumBot(db, botID, slog.Default()))

	var bot entity.User
	require.NoError(t, db.First(&bot, "id = ?", botID).Error)
	assert.Equal(t, ForumBotUsername, bot.Username)
	assert.Equal(t, entity.RoleUser, bot.Role)

	var count int64
	require.NoError(t, db.Model(&entity.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSeedForumBotConflictingID(t *testing.T) {
	db := newDB(t)
	require.NoError(t, SeedForumBot(db, uuid.New(), slog.Default()))
	assert.Error(t, SeedForumBot(db, uuid.New(), slog.Default()))
}

func TestSeedForumBotSkippedWithoutID(t *testing.T) {
	db := newDB(t)
	require.NoError(t, SeedForumBot(db, uuid.Nil, slog.Default()))

	var count int64
	require.NoError(t, db.Model(&entity.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeedDevUsers(t *testing.T) {
	db := newDB(t)
	require.NoError(t, SeedDevUsers(db, slog.Default()))
	require.NoError(t, SeedDevUsers(db, slog.Default()))

	var admin entity.User
	require.NoError(t, db.First(&admin, "email = ?", "admin@forum.com").Error)
	assert.True(t, admin.IsAdmin())

	var count int64
	require.NoError(t, db.Model(&entity.User{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}
