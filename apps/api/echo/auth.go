package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core/school"
)

var (
	contextTokenKey  = "schoolToken"
	contextSchoolKey = "school"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	SchoolCode string `json:"school_code,omitempty"`
}

func newJWTConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func (s *Server) schoolClaims(sch school.School) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    s.Conf.AppName,
			Subject:   sch.ID,
			ExpiresAt: now.Add(s.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		SchoolCode: sch.Code,
	}
}

// GenerateToken generates a signed JWT token string representing the school Claims.
func (s *Server) GenerateToken(sch school.School) (string, error) {
	method := jwt.GetSigningMethod(s.jwt.SigningMethod)
	token := jwt.NewWithClaims(method, s.schoolClaims(sch))

	ss, err := token.SignedString(s.jwt.SigningKey)
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

func getContextSchool(ctx echo.Context) (school.School, error) {
	if s, ok := ctx.Get(contextSchoolKey).(school.School); ok {
		return s, nil
	}
	return school.School{}, errUnauthorized
}

type (
	authApi struct {
		*Server
	}

	authResponse struct {
		ID         string `json:"id"`
		SchoolCode string `json:"school_code"`
		SchoolName string `json:"school_name"`
		Token      string `json:"token"`
	}
)

func registerAuthAPI(g *echo.Group, s *Server) {
	api := authApi{Server: s}

	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
}

func (api authApi) respond(ctx echo.Context, code int, sch school.School) error {
	token, err := api.GenerateToken(sch)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, authResponse{
		ID:         sch.ID,
		SchoolCode: sch.Code,
		SchoolName: sch.Name,
		Token:      token,
	})
}

func (api authApi) signup(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	sch, err := api.SchoolSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return api.respond(ctx, http.StatusCreated, sch)
}

func (api authApi) login(ctx echo.Context) error {
	var data school.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	sch, err := api.SchoolSvc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating school")
	}
	return api.respond(ctx, http.StatusOK, sch)
}
