package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
)

const contextTokenKey = "recipientToken"

// Claims represents the authorization claims transmitted via a JWT.
// The identity provider signs the authenticated (role, recipientId) pair into
// the token; this API trusts it and never re-derives it from request input.
type Claims struct {
	jwt.StandardClaims
	Role        notification.Role `json:"role,omitempty"`
	RecipientID int               `json:"recipient_id,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetRecipientClaims(conf *core.Config, rcpt notification.Recipient) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:        rcpt.Role,
		RecipientID: rcpt.ID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)
	return token.SignedString([]byte(conf.SecretKey))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextRecipient returns the authenticated recipient from the JWT claims.
func getContextRecipient(ctx echo.Context) (notification.Recipient, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return notification.Recipient{}, err
	}
	rcpt := notification.Recipient{Role: claims.Role, ID: claims.RecipientID}
	if err = rcpt.Validate(); err != nil {
		return notification.Recipient{}, errUnauthorized
	}
	return rcpt, nil
}

// publisherMiddleware guards the create endpoint: only the platform backend
// (admin tokens) may publish notifications.
func publisherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role != notification.RoleAdmin {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
