package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// EnvelopeKey is the variable holding the sealed session in an envelope.
const EnvelopeKey = "__encrypted__"

var (
	ErrInvalidKey      = errors.New("encryption key must be 32 bytes (AES-256)")
	ErrMissingEnvelope = errors.New("stored session is not an encrypted envelope")
	ErrDecrypt         = errors.New("decryption failed with all available keys")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new writes.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// stored session, which allows key rotation without downtime.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 (standard encoding) AES-256 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals each session with AES-GCM. The underlying
// store sees an envelope that only exposes routing fields (chat, flow,
// status and timestamps); node position, history and variables are sealed.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, ErrInvalidKey
		}
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, s *domain.Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	sealed, err := encrypt(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}

	envelope := &domain.Session{
		ChatID:         s.ChatID,
		FlowID:         s.FlowID,
		Status:         s.Status,
		StartedAt:      s.StartedAt,
		LastAdvancedAt: s.LastAdvancedAt,
		Variables: map[string]any{
			EnvelopeKey: base64.StdEncoding.EncodeToString(sealed),
		},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Variables[EnvelopeKey].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	plain, err := decryptWithRotation(sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, err
	}

	var s domain.Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, chatID string) error {
	return m.next.Delete(ctx, chatID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plain, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decryptWithRotation(sealed, active []byte, fallback [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{active}, fallback...) {
		if plain, err := decrypt(sealed, key); err == nil {
			return plain, nil
		}
	}
	return nil, ErrDecrypt
}

func decrypt(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
