package fleetsim

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"golang.org/x/crypto/bcrypt"
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the token payload.
type Claims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type account struct {
	user fleetapi.User
	hash []byte
}

// Authenticator checks passwords and issues HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration

	mu       sync.RWMutex
	accounts map[string]*account // by lower-cased email
	nextUID  uint64
}

// NewAuthenticator creates an authenticator signing with secret.
func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Authenticator{
		secret:   []byte(secret),
		ttl:      ttl,
		accounts: make(map[string]*account),
		nextUID:  912345678901234567,
	}
}

// AddUser registers an operator. The UID is generated.
func (a *Authenticator) AddUser(username, email, role, password string) (fleetapi.User, error) {
	if email == "" || password == "" {
		return fleetapi.User{}, fmt.Errorf("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fleetapi.User{}, fmt.Errorf("hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user := fleetapi.User{
		UID:      codec.IDFromUint64(a.nextUID),
		Username: username,
		Email:    email,
		Role:     role,
	}
	a.nextUID++
	a.accounts[strings.ToLower(email)] = &account{user: user, hash: hash}
	return user, nil
}

// Login verifies credentials and returns a fresh token.
func (a *Authenticator) Login(email, password string) (*fleetapi.LoginResult, error) {
	a.mu.RLock()
	acct, ok := a.accounts[strings.ToLower(strings.TrimSpace(email))]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := a.IssueToken(acct.user, a.ttl)
	if err != nil {
		return nil, err
	}
	return &fleetapi.LoginResult{Token: token, User: acct.user}, nil
}

// IssueToken signs a token for user valid for ttl. A negative ttl yields an
// already expired token.
func (a *Authenticator) IssueToken(user fleetapi.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UID:      user.UID.String(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a bearer token and returns its claims.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
