package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/session"
)

const (
	contextTokenKey   = "sessionToken"
	contextSessionKey = "session"
	audience          = "Classboard"
)

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the session id.
type Claims struct {
	jwt.StandardClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func NewClaims(conf *core.Config, s session.Session) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   s.ID,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:  s.Teacher.Name,
		Email: s.Teacher.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// sessionMiddleware loads the session named by the token subject.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		sess, err := s.SessionSvc.Get(ctx.Request().Context(), claims.Subject)
		if err != nil {
			switch errors.Cause(err) {
			case session.ErrNotFound, session.ErrExpired:
				return errUnauthorized
			}
			return errors.Wrap(err, "getting session")
		}
		ctx.Set(contextSessionKey, sess)
		return next(ctx)
	}
}

func contextSession(ctx echo.Context) (session.Session, error) {
	if s, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return s, nil
	}
	return session.Session{}, errUnauthorized
}

func contextTeacher(ctx echo.Context) core.Teacher {
	if s, err := contextSession(ctx); err == nil {
		return s.Teacher
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return core.Teacher{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
	}
	return core.Teacher{}
}
