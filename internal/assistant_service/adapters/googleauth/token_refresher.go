package googleauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes the assistant's calendar/mail tooling needs.
var assistantScopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// TokenRefresher exchanges stored refresh tokens for fresh access tokens used
// by the assistant's Google Calendar and Gmail lookups.
type TokenRefresher struct {
	logger *slog.Logger
	config *oauth2.Config
}

func NewTokenRefresher(logger *slog.Logger, clientID, clientSecret string) *TokenRefresher {
	return &TokenRefresher{
		logger: logger.With("adapter", "google_auth"),
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       assistantScopes,
		},
	}
}

// Refresh exchanges a refresh token for a fresh access token.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := r.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute), // force a refresh
	})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}
	r.logger.DebugContext(ctx, "Google access token refreshed", "expiry", token.Expiry)
	return token, nil
}
