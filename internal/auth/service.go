package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenTTL = 12 * time.Hour

// Service checks the operator credential and issues API tokens. With no
// password hash configured every login is refused and the middleware lets
// requests through as a local operator.
type Service struct {
	hash      []byte
	jwtSecret []byte
	now       func() time.Time
}

func NewService(passwordHash, jwtSecret string) *Service {
	return &Service{
		hash:      []byte(passwordHash),
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// Enabled reports whether an operator password is configured.
func (s *Service) Enabled() bool {
	return len(s.hash) > 0
}

type Session struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operator"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) Login(operator, password string) (*Session, error) {
	if !s.Enabled() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := typeid.NewOperatorID()
	expires := s.now().Add(tokenTTL)
	token, err := s.issueToken(operator, sessionID, expires)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		Operator:  operator,
		SessionID: sessionID,
		ExpiresAt: expires,
	}, nil
}

// ValidateToken returns the operator a token was issued to.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	operator, ok := claims["sub"].(string)
	if !ok || operator == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if sid, _ := claims["sid"].(string); !typeid.HasPrefix(sid, typeid.PrefixOperator) {
		return "", fmt.Errorf("%w: bad session id", ErrInvalidToken)
	}
	return operator, nil
}

func (s *Service) issueToken(operator, sessionID string, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": operator,
		"sid": sessionID,
		"iat": s.now().Unix(),
		"exp": expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// HashPassword produces a value for OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
