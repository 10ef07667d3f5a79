package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/oaiiae/contacts-api/identity"
)

const bearerScheme = "bearer"

// Bearer guards operations behind a bearer token granted Scope.
type Bearer struct {
	Validator identity.TokenValidator
	Scope     string
	Realm     string
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of the token that authenticated the request.
func ClaimsFromContext(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*identity.Claims)
	return claims, ok
}

// Use installs the middleware on api and documents the security requirement
// of the operations registered on it afterwards.
func (b *Bearer) Use(api huma.API) {
	components := api.OpenAPI().Components
	if components.SecuritySchemes == nil {
		components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	components.SecuritySchemes[bearerScheme] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}

	if group, ok := api.(*huma.Group); ok {
		group.UseModifier(func(o *huma.Operation, next func(*huma.Operation)) {
			op := *o
			op.Security = append(slices.Clone(o.Security), map[string][]string{bearerScheme: {b.Scope}})
			next(&op)
		})
	}
	api.UseMiddleware(b.middleware(api))
}

func (b *Bearer) middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := bearerToken(ctx.Header("Authorization"))
		if !ok {
			b.challenge(ctx, "")
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "bearer token required")
			return
		}

		claims, err := identity.Authorize(ctx.Context(), b.Validator, token, b.Scope)
		switch {
		case err == nil:
			next(huma.WithValue(ctx, claimsKey{}, claims))

		case errors.Is(err, identity.ErrInsufficientScope):
			b.challenge(ctx, "insufficient_scope")
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, "insufficient scope", err)

		case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrExpiredToken):
			b.challenge(ctx, "invalid_token")
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token", err)

		default:
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "could not verify token", err)
		}
	}
}

// challenge sets WWW-Authenticate as in RFC 6750 section 3.
func (b *Bearer) challenge(ctx huma.Context, code string) {
	params := []string{}
	if b.Realm != "" {
		params = append(params, fmt.Sprintf("realm=%q", b.Realm))
	}
	if code != "" {
		params = append(params, fmt.Sprintf("error=%q", code))
	}
	if code == "insufficient_scope" && b.Scope != "" {
		params = append(params, fmt.Sprintf("scope=%q", b.Scope))
	}
	value := "Bearer"
	if len(params) > 0 {
		value += " " + strings.Join(params, ", ")
	}
	ctx.SetHeader("WWW-Authenticate", value)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
