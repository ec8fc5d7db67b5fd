// internal/auth/token.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey sign and verify access tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
)

// Init generates a fresh ed25519 key pair at runtime. Tokens don't survive a
// restart by design; rooms rehydrate and players re-authorize.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
}

// InitFromPath reads ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return nil
}

// Claims is the payload of a room access token. Tokens are minted only by
// room-internal logic on successful authorize, never accepted as
// caller-supplied identity.
type Claims struct {
	RoomSlug  string     `json:"room"`
	CID       uuid.UUID  `json:"cid"` // correlation id, one per mint
	Spectator bool       `json:"spectator"`
	Monitor   bool       `json:"monitor"`
	PlayerKey string     `json:"playerKey"`
	AccountID *uuid.UUID `json:"accountID,omitempty"`
}

// CreateToken signs the claims. No exp claim: tokens never silently expire,
// they only leave the revocable set via explicit invalidation.
func CreateToken(c Claims) (string, error) {
	claims := jwt.MapClaims{
		"room":      c.RoomSlug,
		"cid":       c.CID.String(),
		"spectator": c.Spectator,
		"monitor":   c.Monitor,
		"playerKey": c.PlayerKey,
	}
	if c.AccountID != nil {
		claims["accountID"] = c.AccountID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// ParseToken verifies a token string and returns its claims, else an error.
func ParseToken(tokenString string) (*Claims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid jwt claims")
	}

	out := &Claims{}
	if out.RoomSlug, ok = mc["room"].(string); !ok {
		return nil, fmt.Errorf("missing room in jwt")
	}
	cidStr, ok := mc["cid"].(string)
	if !ok {
		return nil, fmt.Errorf("missing cid in jwt")
	}
	cid, err := uuid.Parse(cidStr)
	if err != nil {
		return nil, fmt.Errorf("malformed cid in jwt: %w", err)
	}
	out.CID = cid
	out.Spectator, _ = mc["spectator"].(bool)
	out.Monitor, _ = mc["monitor"].(bool)
	out.PlayerKey, _ = mc["playerKey"].(string)
	if accStr, ok := mc["accountID"].(string); ok {
		if acc, err := uuid.Parse(accStr); err == nil {
			out.AccountID = &acc
		}
	}
	return out, nil
}

// TokenStore is the server-held set of live tokens, keyed by correlation id.
// A token absent from the set is rejected regardless of signature validity.
// The set only shrinks via Invalidate, never by expiry.
type TokenStore struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewTokenStore() *TokenStore {
	return &TokenStore{active: make(map[uuid.UUID]struct{})}
}

// Register adds a freshly minted token's correlation id to the live set.
func (s *TokenStore) Register(cid uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[cid] = struct{}{}
}

// Valid reports whether the correlation id is still in the live set.
func (s *TokenStore) Valid(cid uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[cid]
	return ok
}

// Invalidate permanently removes the correlation id from the live set.
func (s *TokenStore) Invalidate(cid uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, cid)
}
