// Package share issues and validates time-limited capability tokens that
// grant anonymous access to a single file or a whole folder. Tokens are
// signed JWTs and additionally recorded server-side; the server-side row is
// authoritative for revocation and expiry, the signature only proves the
// token was not forged.
package share

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tgvault/tgvault/internal/apperrors"
	"github.com/tgvault/tgvault/internal/models"
	"gorm.io/gorm"
)

type Claims struct {
	Folder   string `json:"folder"`
	Filename string `json:"filename,omitempty"`
	Scope    string `json:"type"`
	Owner    string `json:"owner"`
	jwt.RegisteredClaims
}

type Gate struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func NewGate(db *gorm.DB, secret []byte, ttl time.Duration) *Gate {
	return &Gate{db: db, secret: secret, ttl: ttl}
}

// Issue signs a share token for the target and records it for revocation
// and audit. Returns the token string and its expiry.
func (g *Gate) Issue(scope, folder, filename, owner string) (string, time.Time, error) {
	expiresAt := time.Now().Add(g.ttl)

	claims := Claims{
		Folder:   folder,
		Filename: filename,
		Scope:    scope,
		Owner:    owner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	record := models.ShareToken{
		Token:     tokenString,
		Scope:     scope,
		Folder:    folder,
		Filename:  filename,
		Owner:     owner,
		ExpiresAt: expiresAt,
	}
	if err := g.db.Create(&record).Error; err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Validate checks the server-side record first (existence, revocation,
// stored expiry), then the signature and its own expiry claim, then the
// scope. Each failure mode is distinguishable. Valid tokens validate
// identically every time until revoked or expired.
func (g *Gate) Validate(tokenString, expectedScope string) (*Claims, error) {
	var record models.ShareToken
	if err := g.db.Where("token = ?", tokenString).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Authentication("Share token not found")
		}
		return nil, err
	}

	if record.Revoked {
		return nil, apperrors.Authentication("Share token revoked")
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, apperrors.Authentication("Share token expired")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Authentication("Invalid share token")
	}

	if claims.Scope != expectedScope {
		return nil, apperrors.Validation("Share token does not grant access to this resource")
	}

	return claims, nil
}

// Revoke marks the owner's token as revoked. Revocation is monotonic;
// a revoked token never validates again.
func (g *Gate) Revoke(tokenString, owner string) error {
	var record models.ShareToken
	if err := g.db.Where("token = ? AND owner = ?", tokenString, owner).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Share token", "")
		}
		return err
	}

	return g.db.Model(&record).Update("revoked", true).Error
}
