package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/famsync/famsync/internal/crypto"
	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/limiter"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// AuthService verifies parent second factors and issues short-lived access tokens.
type AuthService struct {
	store     repository.Store
	lim       limiter.Limiter
	signKey   []byte
	accessTTL time.Duration
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(store repository.Store, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthService {
	return &AuthService{store: store, lim: lim, signKey: signKey, accessTTL: accessTTL}
}

// parentClaims binds an issued token to one parent of one family.
type parentClaims struct {
	FamilyID string `json:"familyId"`
	jwt.RegisteredClaims
}

// ParentLogin authenticates a parent through their second password hash. The
// special value "device" accepts the device's kept-signed-in parent instead,
// the way devices of signed-in parents authorize without re-entering the
// password. Attempts are rate limited per (family, ip).
func (s *AuthService) ParentLogin(ctx context.Context, deviceAuthToken, parentUserID, secondPasswordHash, ip string) (model.Tokens, error) {
	ipHash := limiter.HashIP(ip)

	var tokens model.Tokens
	err := s.store.RunPullTx(ctx, deviceAuthToken, func(ctx context.Context, tx repository.PullTx) error {
		family := tx.Family()

		allowed, _, err := s.lim.Allow(ctx, family.FamilyID, ipHash)
		if err != nil {
			return err
		}
		if !allowed {
			return errs.ErrRateLimited
		}

		if err := s.verifySecondFactor(ctx, tx, parentUserID, secondPasswordHash); err != nil {
			if errors.Is(err, errs.ErrUnauthorized) {
				if blocked, _, ferr := s.lim.Failure(ctx, family.FamilyID, ipHash); ferr == nil && blocked {
					return errs.ErrRateLimited
				}
			}
			return err
		}

		// best-effort counter reset
		_ = s.lim.Success(ctx, family.FamilyID, ipHash)

		access, exp, err := s.issueAccessToken(family.FamilyID, parentUserID)
		if err != nil {
			return err
		}
		tokens = model.Tokens{AccessToken: access, ExpiresAt: exp}
		return nil
	})
	return tokens, err
}

func (s *AuthService) verifySecondFactor(ctx context.Context, tx repository.PullTx, parentUserID, secondPasswordHash string) error {
	user, err := tx.FindUser(ctx, parentUserID)
	if err != nil || user.Type != model.UserTypeParent {
		// hide whether the user exists
		return errs.ErrUnauthorized
	}

	if secondPasswordHash == "device" {
		device := tx.Device()
		if !device.IsUserKeptSignedIn || device.CurrentUserID != parentUserID {
			return errs.ErrUnauthorized
		}
		return nil
	}

	if !pkgcrypto.VerifySecondPassword([]byte(secondPasswordHash), user.SecondPasswordSalt, user.SecondPasswordHash) {
		return errs.ErrUnauthorized
	}
	return nil
}

// issueAccessToken creates a signed HS256 JWT for the given parent.
func (s *AuthService) issueAccessToken(familyID, userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := parentClaims{
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// VerifyAccessToken checks an access token and returns the family and parent it
// was issued for.
func (s *AuthService) VerifyAccessToken(token string) (familyID, userID string, err error) {
	var claims parentClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", "", errs.ErrUnauthorized
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return "", "", errs.ErrUnauthorized
	}
	if claims.FamilyID == "" || claims.Subject == "" {
		return "", "", errs.ErrUnauthorized
	}
	return claims.FamilyID, claims.Subject, nil
}
