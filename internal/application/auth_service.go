package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alu2004/swift-bus-bookings/internal/auth"
	"github.com/Alu2004/swift-bus-bookings/internal/domain"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
)

const (
	otpLength = 6
	otpTTL    = 10 * time.Minute
)

// loginNamespace is the UUIDv5 namespace for deriving stable passenger IDs
// from contact addresses, so a passenger keeps the same ID across logins.
var loginNamespace = uuid.MustParse("7b9c5a10-2f4e-4d7a-93c1-6e8f0b2d4a1c")

// CodeStore persists hashed one-time login codes with a TTL.
type CodeStore interface {
	Store(ctx context.Context, contact, codeHash string, ttl time.Duration) error
	Get(ctx context.Context, contact string) (string, error)
	Delete(ctx context.Context, contact string) error
}

// VerifyCodeResult is the response DTO for a successful login.
type VerifyCodeResult struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	Contact   string    `json:"contact"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService implements passwordless login with emailed one-time codes.
type AuthService struct {
	store         CodeStore
	notifier      notify.Notifier
	jwtManager    *auth.JWTManager
	tokenTTL      time.Duration
	adminContacts map[string]bool
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService. Contacts listed in
// adminContacts are issued admin tokens.
func NewAuthService(
	store CodeStore,
	notifier notify.Notifier,
	jwtManager *auth.JWTManager,
	tokenTTL time.Duration,
	adminContacts []string,
	logger *zap.Logger,
) *AuthService {
	admins := make(map[string]bool, len(adminContacts))
	for _, c := range adminContacts {
		admins[normalizeContact(c)] = true
	}
	return &AuthService{
		store:         store,
		notifier:      notifier,
		jwtManager:    jwtManager,
		tokenTTL:      tokenTTL,
		adminContacts: admins,
		logger:        logger,
	}
}

// RequestCode generates a one-time code for the contact, stores its hash,
// and emails the code. Requesting again replaces any outstanding code.
func (s *AuthService) RequestCode(ctx context.Context, contact string) error {
	contact = normalizeContact(contact)
	if _, err := mail.ParseAddress(contact); err != nil {
		return domain.NewValidationError("a valid email address is required")
	}

	code, err := generateCode(otpLength)
	if err != nil {
		return fmt.Errorf("failed to generate login code: %w", err)
	}

	if err := s.store.Store(ctx, contact, hashCode(code), otpTTL); err != nil {
		s.logger.Error("failed to store login code", zap.Error(err))
		return fmt.Errorf("failed to store login code: %w", err)
	}

	if err := s.notifier.SendLoginCode(ctx, contact, code, otpTTL); err != nil {
		s.logger.Error("failed to send login code",
			zap.String("contact", contact),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send login code: %w", err)
	}

	s.logger.Info("login code sent", zap.String("contact", contact))
	return nil
}

// VerifyCode checks the submitted code against the stored hash and issues a
// session token. The code is single use: it is deleted on success.
func (s *AuthService) VerifyCode(ctx context.Context, contact, code string) (*VerifyCodeResult, error) {
	contact = normalizeContact(contact)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("login code is required")
	}

	// Only a missing or expired code counts as a bad login attempt. A store
	// outage must surface as an internal failure, not a 400 telling the
	// passenger their code is wrong.
	storedHash, err := s.store.Get(ctx, contact)
	if err != nil {
		var nfErr *domain.NotFoundError
		if errors.As(err, &nfErr) {
			return nil, domain.NewValidationError("login code is invalid or has expired")
		}
		s.logger.Error("failed to load login code", zap.Error(err))
		return nil, fmt.Errorf("failed to load login code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(storedHash)) != 1 {
		return nil, domain.NewValidationError("login code is invalid or has expired")
	}

	if err := s.store.Delete(ctx, contact); err != nil {
		s.logger.Warn("failed to delete consumed login code", zap.Error(err))
	}

	userID := uuid.NewSHA1(loginNamespace, []byte(contact))
	role := auth.RolePassenger
	if s.adminContacts[contact] {
		role = auth.RoleAdmin
	}

	token, err := s.jwtManager.Generate(userID, contact, role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("login verified",
		zap.String("contact", contact),
		zap.String("role", role),
	)
	return &VerifyCodeResult{
		Token:     token,
		UserID:    userID,
		Contact:   contact,
		Role:      role,
		ExpiresAt: time.Now().UTC().Add(s.tokenTTL),
	}, nil
}

func normalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

func generateCode(length int) (string, error) {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
