package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"readyaid/internal/models"
)

const (
	accessTokenLength  = 16
	accessTokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// TokenService mints and rotates the bearer token embedded in tracking
// links.
type TokenService interface {
	// Mint generates a fresh cryptographically-random token.
	Mint() (string, error)

	// EnsureFresh returns the session's token unchanged while it is
	// younger than the reuse window, so previously shared links stay
	// valid mid-broadcast. Past the window it mints a replacement and
	// reports rotated=true for the caller to persist.
	EnsureFresh(session *models.EmergencySession) (token string, rotated bool, err error)
}

type tokenService struct {
	reuseWindow time.Duration
	now         func() time.Time
}

func NewTokenService(reuseWindow time.Duration) TokenService {
	return &tokenService{
		reuseWindow: reuseWindow,
		now:         time.Now,
	}
}

func (s *tokenService) Mint() (string, error) {
	result := make([]byte, accessTokenLength)
	charsetLength := big.NewInt(int64(len(accessTokenCharset)))

	for i := range result {
		num, err := rand.Int(rand.Reader, charsetLength)
		if err != nil {
			return "", fmt.Errorf("failed to mint access token: %w", err)
		}
		result[i] = accessTokenCharset[num.Int64()]
	}

	return string(result), nil
}

func (s *tokenService) EnsureFresh(session *models.EmergencySession) (string, bool, error) {
	if session.AccessToken != "" && s.now().Sub(session.TokenCreatedAt) < s.reuseWindow {
		return session.AccessToken, false, nil
	}

	token, err := s.Mint()
	if err != nil {
		return "", false, err
	}

	return token, true, nil
}
