package postgres

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/TommyBez/v0-hub/internal/domain"
	"github.com/TommyBez/v0-hub/internal/storage"
	"github.com/TommyBez/v0-hub/pkg/logger"
)

// Storage persists user tokens in Postgres, AES-256-GCM encrypted with a
// process-wide key before they ever hit a row.
type Storage struct {
	db   *sql.DB
	aead cipher.AEAD
}

// NewPostgresStorage opens the database and prepares the token cipher.
// encryptionKey is hex-encoded and must decode to 32 bytes.
func NewPostgresStorage(host, port, user, password, dbname, sslmode, encryptionKey string) (*Storage, error) {
	key, err := hex.DecodeString(encryptionKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("token encryption key must be 32 hex-encoded bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init gcm: %w", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Storage{db: db, aead: aead}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

var _ storage.TokenStore = (*Storage)(nil)

func (s *Storage) Save(ctx context.Context, userID, token string) error {
	log := logger.FromContext(ctx)

	sealed, err := s.seal(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	query := `INSERT INTO user_tokens (user_id, token, created_at, updated_at)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (user_id) DO UPDATE
              SET token = $2, updated_at = $4`

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query, userID, sealed, now, now); err != nil {
		log.Error(ctx, "failed to save token", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to save token: %w", err)
	}

	log.Info(ctx, "token saved", zap.String("user_id", userID))
	return nil
}

func (s *Storage) Get(ctx context.Context, userID string) (string, error) {
	log := logger.FromContext(ctx)
	query := `SELECT token FROM user_tokens WHERE user_id = $1`

	var sealed []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNoTokenConfigured
	}
	if err != nil {
		log.Error(ctx, "failed to get token", zap.Error(err), zap.String("user_id", userID))
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	token, err := s.open(sealed)
	if err != nil {
		log.Error(ctx, "failed to decrypt token", zap.Error(err), zap.String("user_id", userID))
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return token, nil
}

func (s *Storage) Has(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM user_tokens WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}

func (s *Storage) Delete(ctx context.Context, userID string) error {
	log := logger.FromContext(ctx)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, userID); err != nil {
		log.Error(ctx, "failed to delete token", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to delete token: %w", err)
	}

	log.Info(ctx, "token deleted", zap.String("user_id", userID))
	return nil
}

// seal encrypts token, prepending the nonce to the ciphertext.
func (s *Storage) seal(token string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, []byte(token), nil), nil
}

func (s *Storage) open(sealed []byte) (string, error) {
	if len(sealed) < s.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
