package ynab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"budgetbridge/internal/domain/ledger"

	"golang.org/x/oauth2"
)

const DefaultAuthBaseURL = "https://app.ynab.com"

// OAuthConfig holds the registered application credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthBaseURL defaults to DefaultAuthBaseURL.
	AuthBaseURL string
}

// OAuth implements ledger.Authenticator with the authorization code grant.
type OAuth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

var _ ledger.Authenticator = (*OAuth)(nil)

// NewOAuth builds the authenticator. httpClient may be nil.
func NewOAuth(cfg OAuthConfig, httpClient *http.Client) *OAuth {
	base := strings.TrimRight(cfg.AuthBaseURL, "/")
	if base == "" {
		base = DefaultAuthBaseURL
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

func (o *OAuth) Exchange(ctx context.Context, code string) (*ledger.Credential, error) {
	tok, err := o.cfg.Exchange(o.context(ctx), code)
	if err != nil {
		return nil, tokenError("exchange auth code", err)
	}
	return credentialFromToken(tok), nil
}

func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*ledger.Credential, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token: %w: no refresh token stored", ledger.ErrAuthorization)
	}
	tok, err := o.cfg.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, tokenError("refresh token", err)
	}
	return credentialFromToken(tok), nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// tokenError maps a rejected grant to ErrAuthorization.
func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %s", op, ledger.ErrAuthorization, re.ErrorCode)
		}
		return &ledger.RemoteError{Op: op, StatusCode: re.Response.StatusCode, Detail: string(re.Body)}
	}
	return &ledger.RemoteError{Op: op, Detail: err.Error()}
}

func credentialFromToken(tok *oauth2.Token) *ledger.Credential {
	cred := &ledger.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	return cred
}
