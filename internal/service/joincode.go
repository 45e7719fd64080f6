package service

import (
	"context"
	"math/rand/v2"
	"strings"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultJoinCodeAttempts bounds how many codes are tried before giving up
const DefaultJoinCodeAttempts = 50

// GenerateJoinCode draws a join code uniformly from [A-Z0-9].
// Join codes are not secrets, so a non-cryptographic source is enough.
func GenerateJoinCode() string {
	b := make([]byte, models.JoinCodeLength)
	for i := range b {
		b[i] = joinCodeAlphabet[rand.IntN(len(joinCodeAlphabet))]
	}
	return string(b)
}

// NormalizeJoinCode trims and upper-cases user input for comparison
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsWellFormedJoinCode reports whether code has the shape of a generated join code
func IsWellFormedJoinCode(code string) bool {
	if len(code) != models.JoinCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(joinCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

func joinCodeTaken(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("UPPER(join_code) = ?", NormalizeJoinCode(code)).
		Count(&count).Error
	return count > 0, err
}
