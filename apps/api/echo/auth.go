package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
)

const (
	contextTokenKey = "teacherToken"
	tokenAudience   = "Tasmik"
)

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the teacher ID the dashboard grades for.
type Claims struct {
	jwt.StandardClaims
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// Identity returns the teacher the claims were issued to.
func (c Claims) Identity() core.Identity {
	return core.Identity{ID: c.Subject, Name: c.Name, IsAdmin: c.IsAdmin}
}

func GetTeacherClaims(id core.Identity, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:    id.Name,
		IsAdmin: id.IsAdmin,
	}
}

// newJWTConfig returns the JWT auth middleware config signed with the app's secret key.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the teacher Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok && claims.Subject != "" {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
