// Package github implementa el intercambio OAuth 2.0 con GitHub.
// GitHub no emite ID tokens: el perfil se obtiene con una llamada aparte a /user.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ProviderName identifica al provider en logs y métricas.
const ProviderName = "github"

const defaultAPIURL = "https://api.github.com"

// Config contiene la configuración del cliente OAuth.
// AuthURL, TokenURL y APIURL sólo se setean en tests o GitHub Enterprise.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	APIURL   string

	HTTPClient *http.Client
}

// Profile es el perfil normalizado de GitHub.
type Profile struct {
	ID        string // id numérico en decimal
	Login     string
	Name      string
	AvatarURL string
}

// Grant es el resultado de un intercambio exitoso.
type Grant struct {
	AccessToken string
	TokenType   string
	Scope       string
	Profile     Profile
}

// ErrExchange envuelve cualquier falla del provider.
var ErrExchange = errors.New("github: exchange failed")

// OAuth es el cliente OAuth 2.0 de GitHub.
type OAuth struct {
	cfg    *oauth2.Config
	apiURL string
	http   *http.Client
}

// New crea un cliente. Sin scopes pide "profile".
func New(c Config) *OAuth {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"profile"}
	}
	endpoint := github.Endpoint
	// GitHub acepta client_id/secret en el body; evita la autodetección de AuthStyle.
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	apiURL := strings.TrimRight(c.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiURL: apiURL,
		http:   hc,
	}
}

// AuthURL construye la URL de autorización de GitHub para el state dado.
func (g *OAuth) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("allow_signup", "true"))
}

// Exchange canjea el authorization code por un access token y trae el perfil.
// Cualquier falla se reporta envuelta en ErrExchange.
func (g *OAuth) Exchange(ctx context.Context, code string) (*Grant, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrExchange)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	profile, err := g.fetchProfile(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	scope, _ := tok.Extra("scope").(string)
	return &Grant{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Scope:       scope,
		Profile:     *profile,
	}, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func (g *OAuth) fetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	client := g.cfg.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github api error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var u githubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == 0 {
		return nil, errors.New("github user without id")
	}

	return &Profile{
		ID:        strconv.FormatInt(u.ID, 10),
		Login:     u.Login,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}, nil
}
