// Package auth manages the locally cached Google credential: loaded at
// startup, validated with the server on sign-in, and invalidated on 401 or
// explicit sign-out.
package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"

	"github.com/vrsandeep/tubeindex/internal/store"
)

// API is the slice of the HTTP client the auth service needs.
type API interface {
	ValidateGoogleToken(ctx context.Context, accessToken string) error
	Logout(ctx context.Context) error
}

// Service owns the credential cache.
type Service struct {
	store *store.Store
	api   API
}

// NewService creates an auth Service backed by the local store.
func NewService(st *store.Store, api API) *Service {
	return &Service{store: st, api: api}
}

// Token returns the cached credential as an oauth2 token, or nil when none
// is stored or the stored one has expired. An expired credential is removed
// so the next attempt re-prompts sign-in.
func (s *Service) Token() *oauth2.Token {
	cred, err := s.store.GetCredential()
	if err != nil {
		log.Printf("auth: failed to load credential: %v", err)
		return nil
	}
	if cred == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken: cred.AccessToken,
		Expiry:      time.UnixMilli(cred.ExpiresAtMs),
	}
	if !tok.Valid() {
		if err := s.store.DeleteCredential(); err != nil {
			log.Printf("auth: failed to clear expired credential: %v", err)
		}
		return nil
	}
	return tok
}

// AccessToken returns the bearer token for outgoing requests, or "" when
// signed out. Suitable as a client token source.
func (s *Service) AccessToken() string {
	tok := s.Token()
	if tok == nil {
		return ""
	}
	return tok.AccessToken
}

// Login validates an access token with the server and, on success, persists
// it with its expiry.
func (s *Service) Login(ctx context.Context, accessToken string, expiry time.Time) error {
	if accessToken == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	if err := s.api.ValidateGoogleToken(ctx, accessToken); err != nil {
		return fmt.Errorf("token rejected by server: %w", err)
	}
	return s.store.PutCredential(&store.Credential{
		AccessToken: accessToken,
		ExpiresAtMs: expiry.UnixMilli(),
	})
}

// Logout clears the cached credential and notifies the server. The
// notification is fire-and-forget: a failure does not keep the user
// signed in locally.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		log.Printf("auth: logout notification failed: %v", err)
	}
	return s.store.DeleteCredential()
}

// Invalidate drops the cached credential without notifying the server.
// Called when a request comes back 401.
func (s *Service) Invalidate() error {
	return s.store.DeleteCredential()
}
