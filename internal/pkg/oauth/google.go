package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/database"
	"github.com/SergeyKozhin/omnical/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	providerGoogle = "google"
	refreshMargin  = 60 * time.Second
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
}

type tokensRepository interface {
	GetPayload(ctx context.Context, q database.Queryable, provider string) (string, error)
	SavePayload(ctx context.Context, q database.Queryable, provider, payload string) error
}

// Vault keeps the Google token set encrypted at rest and hands out valid access tokens.
type Vault struct {
	db               database.PGX
	tokensRepository tokensRepository
	box              *Box
	conf             *oauth2.Config
	logger           *zap.SugaredLogger
	now              func() time.Time
}

type tokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

func NewVault(db database.PGX, repo tokensRepository, box *Box, cfg Config, logger *zap.SugaredLogger) *Vault {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	return &Vault{
		db:               db,
		tokensRepository: repo,
		box:              box,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		logger: logger,
		now:    time.Now,
	}
}

// AuthCodeURL returns the consent page url, offline access is requested so a refresh token is issued.
func (v *Vault) AuthCodeURL(state string) string {
	return v.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token set and stores it.
func (v *Vault) Exchange(ctx context.Context, code string) error {
	tok, err := v.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange: %w", err)
	}

	return v.store(ctx, tok)
}

// StartDeviceAuth requests a user code the operator enters at the verification url.
func (v *Vault) StartDeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	da, err := v.conf.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}
	return da, nil
}

// CompleteDeviceAuth polls the token endpoint until the user code is approved,
// denied or expired, then stores the token set.
func (v *Vault) CompleteDeviceAuth(ctx context.Context, da *oauth2.DeviceAuthResponse) error {
	tok, err := v.conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return fmt.Errorf("device token: %w", err)
	}

	return v.store(ctx, tok)
}

func (v *Vault) store(ctx context.Context, tok *oauth2.Token) error {
	set := fromToken(tok)
	if set.RefreshToken == "" {
		v.logger.Warnw("Google did not return a refresh token, access will stop after expiry")
	}

	return v.save(ctx, set)
}

// GetValidAccessToken refreshes the stored token when it expires within a minute.
func (v *Vault) GetValidAccessToken(ctx context.Context) (string, error) {
	set, err := v.load(ctx)
	if err != nil {
		return "", err
	}

	if set.AccessToken != "" && set.Expiry.Sub(v.now()) >= refreshMargin {
		return set.AccessToken, nil
	}

	refreshed, err := v.refresh(ctx, set)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (v *Vault) RefreshAccessToken(ctx context.Context) (*oauth2.Token, error) {
	set, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	refreshed, err := v.refresh(ctx, set)
	if err != nil {
		return nil, err
	}
	return refreshed.token(), nil
}

func (v *Vault) refresh(ctx context.Context, set *tokenSet) (*tokenSet, error) {
	if set.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", model.ErrRefreshFailed)
	}

	tok, err := v.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: set.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRefreshFailed, err)
	}

	next := fromToken(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = set.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = set.Scope
	}
	if next.TokenType == "" {
		next.TokenType = set.TokenType
	}

	if err := v.save(ctx, next); err != nil {
		return nil, err
	}

	v.logger.Infow("Google access token refreshed", "expiry", next.Expiry)
	return next, nil
}

func (v *Vault) load(ctx context.Context) (*tokenSet, error) {
	payload, err := v.tokensRepository.GetPayload(ctx, v.db, providerGoogle)
	if err != nil {
		if errors.Is(err, model.ErrNoRecord) {
			return nil, model.ErrNoCredential
		}
		return nil, fmt.Errorf("tokensRepository.GetPayload: %w", err)
	}

	plain, err := v.box.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNoCredential, err)
	}

	set := &tokenSet{}
	if err := json.Unmarshal(plain, set); err != nil {
		return nil, fmt.Errorf("%w: decode token set: %v", model.ErrNoCredential, err)
	}

	return set, nil
}

func (v *Vault) save(ctx context.Context, set *tokenSet) error {
	plain, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode token set: %w", err)
	}

	sealed, err := v.box.Seal(plain)
	if err != nil {
		return err
	}

	if err := v.tokensRepository.SavePayload(ctx, v.db, providerGoogle, sealed); err != nil {
		return fmt.Errorf("tokensRepository.SavePayload: %w", err)
	}
	return nil
}

func fromToken(tok *oauth2.Token) *tokenSet {
	set := &tokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set
}

func (s *tokenSet) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}
