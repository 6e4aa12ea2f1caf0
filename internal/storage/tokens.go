package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/iacguard/iacguard/pkg/models"
	"github.com/iacguard/iacguard/pkg/utils"
)

// CreateAPIToken mints a new token and returns the plaintext exactly once;
// only the bcrypt hash and a lookup prefix are persisted.
func (s *Store) CreateAPIToken(name string, ttl time.Duration) (string, *models.APIToken, error) {
	secret, err := utils.GenerateToken(24)
	if err != nil {
		return "", nil, err
	}
	plaintext := "igd_" + secret

	hash, err := utils.HashSecret(plaintext)
	if err != nil {
		return "", nil, err
	}

	token := &models.APIToken{
		Name:      name,
		Prefix:    plaintext[:12],
		TokenHash: hash,
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		token.ExpiresAt = &exp
	}
	if err := s.db.Create(token).Error; err != nil {
		return "", nil, fmt.Errorf("failed to create api token: %w", err)
	}
	return plaintext, token, nil
}

// VerifyAPIToken checks a presented bearer token against stored hashes.
// The prefix narrows the candidate set so bcrypt runs on at most a few rows.
func (s *Store) VerifyAPIToken(plaintext string) (*models.APIToken, error) {
	if len(plaintext) < 12 || !strings.HasPrefix(plaintext, "igd_") {
		return nil, fmt.Errorf("malformed api token")
	}
	var candidates []models.APIToken
	if err := s.db.Where("prefix = ?", plaintext[:12]).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to look up api token: %w", err)
	}
	now := time.Now()
	for i := range candidates {
		t := &candidates[i]
		if t.Expired(now) {
			continue
		}
		if utils.CheckSecretHash(plaintext, t.TokenHash) {
			s.db.Model(t).Update("last_used_at", &now)
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown api token")
}

func (s *Store) ListAPITokens() ([]models.APIToken, error) {
	var tokens []models.APIToken
	if err := s.db.Order("created_at desc").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	return tokens, nil
}

func (s *Store) RevokeAPIToken(id uint) error {
	res := s.db.Delete(&models.APIToken{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
