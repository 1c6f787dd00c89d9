package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrOperatorNotFound = errors.New("operator not found")
	// ErrInvalidToken wraps every ParseToken failure; the jwt cause stays reachable via errors.Is.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenIssuer     = "controlling_tanks"
	defaultTokenTTL = time.Hour
)

// Claims carried by an operator token.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID int    `json:"operator_id"`
	Username   string `json:"username"`
}

// AuthService registers operators and issues the tokens that guard pump commands.
type AuthService struct {
	repo   repository.Authorization
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewAuthService(repo repository.Authorization, cfg config.AuthConfig) *AuthService {
	s := &AuthService{
		repo: repo,
		key:  []byte(cfg.SigningKey),
		ttl:  cfg.TokenTTL,
		now:  time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTokenTTL
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// SignUp stores a new operator with a bcrypt hash of password.
func (s *AuthService) SignUp(username, password string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is empty")
	}
	if strings.TrimSpace(password) == "" {
		return 0, errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(username, string(hash))
}

// GenerateToken checks the credentials and returns a signed token.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	op, err := s.repo.GetByUsername(username)
	switch {
	case err != nil:
		return "", err
	case op == nil:
		return "", ErrOperatorNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidPassword
	}
	return s.sign(op.ID, op.Username)
}

// ParseToken validates a token and returns the operator id it was issued to.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	var claims Claims
	if _, err := s.parser.ParseWithClaims(accessToken, &claims, s.keyFunc); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.OperatorID <= 0 {
		return 0, fmt.Errorf("%w: no operator id", ErrInvalidToken)
	}
	return claims.OperatorID, nil
}

func (s *AuthService) keyFunc(*jwt.Token) (interface{}, error) {
	return s.key, nil
}

func (s *AuthService) sign(operatorID int, username string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		OperatorID: operatorID,
		Username:   username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}
