/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package refauth

import (
	"context"
	"net/http"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"

	"github.com/acronis/go-refauth/authn"
	"github.com/acronis/go-refauth/claims"
	"github.com/acronis/go-refauth/internal/idputil"
)

// Authentication and authorization error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeBearerTokenMissing   = "bearerTokenMissing"
	ErrCodeAuthenticationFailed = "authenticationFailed"
	ErrCodeAuthorizationFailed  = "authorizationFailed"
)

// Authentication error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageBearerTokenMissing   = "Authorization bearer token is missing."
	ErrMessageAuthenticationFailed = "Authentication is failed."
	ErrMessageAuthorizationFailed  = "Authorization is failed."
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyBearerToken
)

// Authenticator is an interface for authenticating requests (e.g. *authn.Handler).
type Authenticator interface {
	Authenticate(r *http.Request) authn.Result
}

type authHandler struct {
	next           http.Handler
	errorDomain    string
	authenticator  Authenticator
	verifyAccess   func(r *http.Request, principal *claims.Principal) bool
	loggerProvider func(ctx context.Context) log.FieldLogger
}

type authMiddlewareOpts struct {
	verifyAccess   func(r *http.Request, principal *claims.Principal) bool
	loggerProvider func(ctx context.Context) log.FieldLogger
}

// AuthMiddlewareOption is an option for AuthMiddleware.
type AuthMiddlewareOption func(options *authMiddlewareOpts)

// WithAuthMiddlewareVerifyAccess is an option to set a function that verifies access for AuthMiddleware.
func WithAuthMiddlewareVerifyAccess(verifyAccess func(r *http.Request, principal *claims.Principal) bool) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.verifyAccess = verifyAccess
	}
}

// WithAuthMiddlewareLoggerProvider is an option to set a logger provider for AuthMiddleware.
func WithAuthMiddlewareLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.loggerProvider = loggerProvider
	}
}

// AuthMiddleware is a middleware that does authentication by reference token of incoming request.
// errorDomain is used for error responses. It is usually the name of the service that uses the middleware.
// For example, if there is no token in the request, the middleware will return 401 with the following response body:
//
//	{"error": {"domain": "MyService", "code": "bearerTokenMissing", "message": "Authorization bearer token is missing."}}
//
// Challenge of the failed result (see authn.Events) is applied to the response.
func AuthMiddleware(errorDomain string, authenticator Authenticator, opts ...AuthMiddlewareOption) func(next http.Handler) http.Handler {
	options := authMiddlewareOpts{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	return func(next http.Handler) http.Handler {
		return &authHandler{
			next:           next,
			errorDomain:    errorDomain,
			authenticator:  authenticator,
			verifyAccess:   options.verifyAccess,
			loggerProvider: options.loggerProvider,
		}
	}
}

func (h *authHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := idputil.GetLoggerFromProvider(r.Context(), h.loggerProvider)

	result := h.authenticator.Authenticate(r)
	switch result.Status {
	case authn.StatusNone:
		apiErr := restapi.NewError(h.errorDomain, ErrCodeBearerTokenMissing, ErrMessageBearerTokenMissing)
		restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
		return

	case authn.StatusFailure:
		logger.Warn("authentication failed", log.String("reason", result.FailureMessage()))
		respStatus := http.StatusUnauthorized
		if result.Challenge != nil {
			for name, values := range result.Challenge.Header {
				for _, value := range values {
					rw.Header().Add(name, value)
				}
			}
			if result.Challenge.StatusCode != 0 {
				respStatus = result.Challenge.StatusCode
			}
		}
		apiErr := restapi.NewError(h.errorDomain, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
		restapi.RespondError(rw, respStatus, apiErr, logger)
		return
	}

	ctx := NewContextWithPrincipal(r.Context(), result.Principal)
	if result.Token != "" {
		ctx = NewContextWithBearerToken(ctx, result.Token)
	}
	r = r.WithContext(ctx)

	if h.verifyAccess != nil {
		// By passing a *http.Request to verifyAccess, we allow its implementations
		// to inject new key/value pairs into the request context.
		if !h.verifyAccess(r, result.Principal) {
			apiErr := restapi.NewError(h.errorDomain, ErrCodeAuthorizationFailed, ErrMessageAuthorizationFailed)
			restapi.RespondError(rw, http.StatusForbidden, apiErr, logger)
			return
		}
	}

	h.next.ServeHTTP(rw, r)
}

// NewVerifyAccessByRoles creates a new function which may be used for verifying access
// by roles of the authenticated principal. Access is granted if the principal has at least one of the roles.
func NewVerifyAccessByRoles(roles ...string) func(r *http.Request, principal *claims.Principal) bool {
	return func(_ *http.Request, principal *claims.Principal) bool {
		if principal == nil {
			return false
		}
		for i := range roles {
			if principal.IsInRole(roles[i]) {
				return true
			}
		}
		return false
	}
}

// NewContextWithPrincipal creates a new context with the authenticated principal.
func NewContextWithPrincipal(ctx context.Context, principal *claims.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// GetPrincipalFromContext extracts the authenticated principal from the context.
func GetPrincipalFromContext(ctx context.Context) *claims.Principal {
	value := ctx.Value(ctxKeyPrincipal)
	if value == nil {
		return nil
	}
	return value.(*claims.Principal)
}

// NewContextWithBearerToken creates a new context with token.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// GetBearerTokenFromContext extracts token from the context.
// The token is there only if the handler is configured to save it.
func GetBearerTokenFromContext(ctx context.Context) string {
	value := ctx.Value(ctxKeyBearerToken)
	if value == nil {
		return ""
	}
	return value.(string)
}
