package middleware

import (
  "fmt"
  "net/http"
  "strings"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

const anonCookieName = "wp_anon"

// IdentityMiddleware resolves who is making the request. A valid bearer
// token wins; otherwise the caller gets a stable anonymous cookie id. Every
// request leaves this middleware with a non-zero identity in the context.
type IdentityMiddleware struct {
  log       *logger.Logger
  jwtSecret []byte
}

func NewIdentityMiddleware(log *logger.Logger) *IdentityMiddleware {
  middlewareLogger := log.With("Middleware", "IdentityMiddleware")
  secret := utils.GetEnv("JWT_SECRET", "", middlewareLogger)
  if secret == "" {
    middlewareLogger.Warn("JWT_SECRET not set; bearer tokens will be rejected")
  }
  return &IdentityMiddleware{log: middlewareLogger, jwtSecret: []byte(secret)}
}

func (im *IdentityMiddleware) Identify() gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := &requestdata.RequestData{}

    tokenString := extractToken(c)
    if tokenString != "" {
      userID, err := im.parseToken(tokenString)
      if err != nil {
        c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
        return
      }
      rd.TokenString = tokenString
      rd.UserID = userID
    } else {
      rd.AnonID = im.anonID(c)
    }

    ctx := requestdata.WithRequestData(c.Request.Context(), rd)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

func (im *IdentityMiddleware) parseToken(tokenString string) (uuid.UUID, error) {
  if len(im.jwtSecret) == 0 {
    return uuid.Nil, fmt.Errorf("token verification unavailable")
  }
  token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
    }
    return im.jwtSecret, nil
  })
  if err != nil || !token.Valid {
    return uuid.Nil, fmt.Errorf("invalid token")
  }
  claims, ok := token.Claims.(jwt.MapClaims)
  if !ok {
    return uuid.Nil, fmt.Errorf("invalid claims")
  }
  sub, err := claims.GetSubject()
  if err != nil || sub == "" {
    return uuid.Nil, fmt.Errorf("missing subject")
  }
  userID, err := uuid.Parse(sub)
  if err != nil {
    return uuid.Nil, fmt.Errorf("subject is not a user id")
  }
  return userID, nil
}

// anonID returns the caller's anonymous id, minting and setting the cookie
// when absent.
func (im *IdentityMiddleware) anonID(c *gin.Context) string {
  if cookie, err := c.Cookie(anonCookieName); err == nil && cookie != "" {
    if _, parseErr := uuid.Parse(cookie); parseErr == nil {
      return cookie
    }
  }
  id := uuid.New().String()
  c.SetSameSite(http.SameSiteLaxMode)
  maxAge := int((365 * 24 * time.Hour).Seconds())
  c.SetCookie(anonCookieName, id, maxAge, "/", "", false, true)
  im.log.Debug("minted anonymous id", "anon_id", id)
  return id
}

func extractToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  // EventSource cannot set headers, so the stream endpoint passes the token
  // in the query string.
  return c.Query("token")
}
