package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/aristath/testscriptgen/internal/api"
)

const ctxUserID = "uid"

// claims are the JWT claims issued by the stub.
type claims struct {
	UID int64 `json:"uid"`
	jwt.RegisteredClaims
}

type user struct {
	id           int64
	username     string
	email        string
	passwordHash string
}

func newUser(id int64, username, password, email string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &user{id: id, username: username, email: email, passwordHash: string(hash)}, nil
}

func (u *user) checkPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(plain)) == nil
}

func (s *Server) issueToken(u *user) (string, error) {
	now := time.Now()
	c := claims{
		UID: u.id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.opts.JWTSecret))
}

func (s *Server) parseToken(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return c, nil
}

// authRequired validates the bearer token and stores the user id in the context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Header("WWW-Authenticate", "Bearer")
			abortDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		cl, err := s.parseToken(parts[1])
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			abortDetail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		c.Set(ctxUserID, cl.UID)
		c.Next()
	}
}

func (s *Server) handleToken(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	var missing []api.ValidationError
	if username == "" {
		missing = append(missing, fieldRequired("body", "username"))
	}
	if password == "" {
		missing = append(missing, fieldRequired("body", "password"))
	}
	if len(missing) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": missing})
		return
	}

	if username != s.user.username || !s.user.checkPassword(password) {
		c.Header("WWW-Authenticate", "Bearer")
		abortDetail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := s.issueToken(s.user)
	if err != nil {
		s.log.WithError(err).Error("failed to sign token")
		abortDetail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	c.JSON(http.StatusOK, api.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, api.User{ID: s.user.id, Username: s.user.username, Email: s.user.email})
}

func fieldRequired(loc ...any) api.ValidationError {
	return api.ValidationError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
