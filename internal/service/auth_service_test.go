package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"controlling_tanks/internal/config"
	"controlling_tanks/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// operatorStore is an in-memory repository.Authorization.
type operatorStore struct {
	byName  map[string]*models.Operator
	nextID  int
	failGet error
	failPut error
	creates int
}

func newOperatorStore() *operatorStore {
	return &operatorStore{byName: map[string]*models.Operator{}, nextID: 1}
}

func (s *operatorStore) Create(username, hash string) (int, error) {
	s.creates++
	if s.failPut != nil {
		return 0, s.failPut
	}
	id := s.nextID
	s.nextID++
	s.byName[username] = &models.Operator{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (s *operatorStore) GetByUsername(username string) (*models.Operator, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.byName[username], nil
}

func newTestAuth(store *operatorStore) *AuthService {
	return NewAuthService(store, config.AuthConfig{SigningKey: "test-signing-key", TokenTTL: time.Hour})
}

func TestSignUp_StoresBcryptHash(t *testing.T) {
	store := newOperatorStore()
	svc := newTestAuth(store)

	id, err := svc.SignUp("  alice ", "s3cr3t")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	op := store.byName["alice"]
	if op == nil || op.ID != id {
		t.Fatalf("operator not stored under trimmed name: %+v", store.byName)
	}
	if op.PasswordHash == "s3cr3t" {
		t.Fatal("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte("s3cr3t")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestSignUp_Rejects(t *testing.T) {
	cases := []struct {
		name, user, pass string
		repoErr          error
		wantCreates      int
	}{
		{"blank password", "bob", "   ", nil, 0},
		{"blank username", " ", "pw", nil, 0},
		{"repo failure", "carl", "pass123", errors.New("db down"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newOperatorStore()
			store.failPut = tc.repoErr
			if _, err := newTestAuth(store).SignUp(tc.user, tc.pass); err == nil {
				t.Fatal("expected error")
			}
			if store.creates != tc.wantCreates {
				t.Fatalf("creates = %d, want %d", store.creates, tc.wantCreates)
			}
		})
	}
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	store := newOperatorStore()
	svc := newTestAuth(store)
	id, err := svc.SignUp("diana", "letmein")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	token, err := svc.GenerateToken("diana", "letmein")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	got, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != id {
		t.Fatalf("operator id = %d, want %d", got, id)
	}
}

func TestGenerateToken_Errors(t *testing.T) {
	store := newOperatorStore()
	svc := newTestAuth(store)
	if _, err := svc.SignUp("eve", "correct"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err := svc.GenerateToken("ghost", "pw"); !errors.Is(err, ErrOperatorNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
	if _, err := svc.GenerateToken("eve", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("wrong password: got %v", err)
	}
	repoErr := errors.New("query failed")
	store.failGet = repoErr
	if _, err := svc.GenerateToken("eve", "correct"); !errors.Is(err, repoErr) {
		t.Errorf("repo failure: got %v", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	svc := newTestAuth(newOperatorStore())
	other := NewAuthService(newOperatorStore(), config.AuthConfig{SigningKey: "different-key"})
	foreign, err := other.sign(5, "mallory")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := map[string]string{
		"malformed":    "not-a-jwt",
		"wrong key":    foreign,
		"empty":        "",
		"rs256":        rs256Token(t),
		"wrong issuer": hs256Token(t, "someone-else", 3),
		"no operator":  hs256Token(t, tokenIssuer, 0),
	}
	for name, tok := range cases {
		if _, err := svc.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestParseToken_Expired(t *testing.T) {
	svc := newTestAuth(newOperatorStore())
	token, err := svc.sign(11, "op")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ParseToken(token)
	if !errors.Is(err, jwt.ErrTokenExpired) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want expired and invalid", err)
	}
}

func TestSign_UniqueTokenIDs(t *testing.T) {
	svc := newTestAuth(newOperatorStore())
	a, _ := svc.sign(1, "op")
	b, _ := svc.sign(1, "op")
	if a == b {
		t.Fatal("two tokens issued in the same second are identical")
	}
}

func hs256Token(t *testing.T, issuer string, operatorID int) string {
	t.Helper()
	now := time.Now()
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		OperatorID: operatorID,
	})
	s, err := tk.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func rs256Token(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	now := time.Now()
	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		OperatorID: 12,
	})
	s, err := tk.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}
