package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/oaiiae/contacts-api/identity"
)

// OpenID exposes the embedded issuer: the token endpoint and its discovery document.
type OpenID struct {
	Issuer       *identity.Issuer
	Scopes       []string
	ErrorHandler func(context.Context, error)
}

func (h *OpenID) RegisterToken(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/connect/token",
		handlerWithErrorHandler(h.token, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests),
	)
}

type TokenOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type" example:"Bearer"`
		ExpiresIn   int    `json:"expires_in" example:"3600" doc:"Lifetime in seconds"`
		Scope       string `json:"scope"      example:"read"`
	}
}

func (h *OpenID) token(ctx context.Context, input *struct {
	Authorization string `header:"Authorization" doc:"HTTP Basic client authentication"`
	RawBody       []byte `contentType:"application/x-www-form-urlencoded"`
}) (*TokenOutput, error) {
	form, err := url.ParseQuery(string(input.RawBody))
	if err != nil {
		return nil, huma.Error400BadRequest("invalid_request", err)
	}

	clientID, secret := form.Get("client_id"), form.Get("client_secret")
	if input.Authorization != "" {
		var ok bool
		clientID, secret, ok = basicCredentials(input.Authorization)
		if !ok {
			return nil, huma.Error401Unauthorized("invalid_client")
		}
	}

	token, err := h.Issuer.Issue(ctx, form.Get("grant_type"), clientID, secret, form.Get("scope"))
	switch {
	case err == nil:
		out := &TokenOutput{CacheControl: "no-store"}
		out.Body.AccessToken = token.AccessToken
		out.Body.TokenType = token.TokenType
		out.Body.ExpiresIn = int(token.ExpiresIn.Seconds())
		out.Body.Scope = token.Scope
		return out, nil

	case errors.Is(err, identity.ErrUnsupportedGrant):
		return nil, huma.Error400BadRequest("unsupported_grant_type", err)

	case errors.Is(err, identity.ErrInvalidScope):
		return nil, huma.Error400BadRequest("invalid_scope", err)

	case errors.Is(err, identity.ErrInvalidClient):
		return nil, huma.Error401Unauthorized("invalid_client", err)

	default:
		return nil, err
	}
}

// basicCredentials decodes client credentials sent as in RFC 6749 section 2.3.1.
func basicCredentials(header string) (id, secret string, ok bool) {
	scheme, encoded, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	id, secret, found = strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	id, err = url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	secret, err = url.QueryUnescape(secret)
	if err != nil {
		return "", "", false
	}
	return id, secret, true
}

func (h *OpenID) RegisterDiscovery(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/.well-known/openid-configuration", h.discovery)
}

type DiscoveryOutput struct {
	Body struct {
		Issuer                            string   `json:"issuer"`
		TokenEndpoint                     string   `json:"token_endpoint"`
		GrantTypesSupported               []string `json:"grant_types_supported"`
		ScopesSupported                   []string `json:"scopes_supported"`
		TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	}
}

func (h *OpenID) discovery(context.Context, *struct{}) (*DiscoveryOutput, error) {
	out := &DiscoveryOutput{}
	out.Body.Issuer = h.Issuer.Issuer()
	out.Body.TokenEndpoint = strings.TrimSuffix(h.Issuer.Issuer(), "/") + "/connect/token"
	out.Body.GrantTypesSupported = []string{identity.GrantClientCredentials}
	out.Body.ScopesSupported = append([]string{}, h.Scopes...)
	out.Body.TokenEndpointAuthMethodsSupported = []string{"client_secret_basic", "client_secret_post"}
	return out, nil
}
