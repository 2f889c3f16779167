package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"anoa.com/forumboard/internal/entity"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const ForumBotUsername = "ForumBot"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Thread{},
		&entity.Comment{},
		&entity.Attachment{},
	)
}

// SeedForumBot makes sure the bot user exists with the configured id. The
// bot gets a random password nobody knows, so it cannot log in.
func SeedForumBot(db *gorm.DB, botID uuid.UUID, logger *slog.Logger) error {
	if botID == uuid.Nil {
		logger.Warn("FORUMBOT_ID is not set, skipping ForumBot seed")
		return nil
	}

	var existing entity.User
	err := db.Where("id = ?", botID).First(&existing).Error
	if err == nil {
		logger.Info("ForumBot user already exists, skipping seed", "id", botID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	bot := entity.User{
		ID:           botID,
		Username:     ForumBotUsername,
		Email:        "forumbot@forumboard.local",
		PasswordHash: string(hash),
		Role:         entity.RoleUser,
	}
	if err := db.Create(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("a %s user exists with another id than FORUMBOT_ID: %w", ForumBotUsername, err)
		}
		return err
	}

	logger.Info("ForumBot user created", "id", botID)
	return nil
}

type seedUser struct {
	username string
	email    string
	role     string
}

// SeedDevUsers creates the development accounts, all with password
// "password123". Existing emails are skipped.
func SeedDevUsers(db *gorm.DB, logger *slog.Logger) error {
	users := []seedUser{
		{"admin", "admin@forum.com", entity.RoleAdmin},
		{"john_doe", "john@example.com", entity.RoleUser},
		{"jane_smith", "jane@example.com", entity.RoleUser},
		{"alice_wonder", "alice@example.com", entity.RoleUser},
		{"bob_builder", "bob@example.com", entity.RoleUser},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	for _, u := range users {
		var count int64
		if err := db.Model(&entity.User{}).Where("email = ?", u.email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			logger.Info("user already exists, skipping", "email", u.email)
			continue
		}

		user := entity.User{Username: u.username, Email: u.email, PasswordHash: string(hash), Role: u.role}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("seed %s: %w", u.email, err)
		}
		logger.Info("user created", "email", u.email, "role", u.role)
	}
	return nil
}
