package middleware

import (
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/requestdata"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
  t.Helper()
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  signed, err := token.SignedString([]byte(secret))
  if err != nil {
    t.Fatalf("sign token: %v", err)
  }
  return signed
}

func newAuthRouter(t *testing.T) (*gin.Engine, *uuid.UUID) {
  t.Helper()
  gin.SetMode(gin.TestMode)
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("init logger: %v", err)
  }

  var seenUserID uuid.UUID
  am := NewAuthMiddleware(log, testSecret)
  r := gin.New()
  r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd != nil {
      seenUserID = rd.UserID
    }
    c.Status(http.StatusNoContent)
  })
  return r, &seenUserID
}

func TestRequireAuth_ValidBearerToken(t *testing.T) {
  r, seen := newAuthRouter(t)
  userID := uuid.New()
  token := signToken(t, testSecret, jwt.MapClaims{
    "sub": userID.String(),
    "exp": time.Now().Add(time.Hour).Unix(),
  })

  req := httptest.NewRequest("GET", "/protected", nil)
  req.Header.Set("Authorization", "Bearer "+token)
  w := httptest.NewRecorder()
  r.ServeHTTP(w, req)

  if w.Code != http.StatusNoContent {
    t.Fatalf("status: want=%d got=%d body=%s", http.StatusNoContent, w.Code, w.Body.String())
  }
  if *seen != userID {
    t.Fatalf("user id in context: want=%v got=%v", userID, *seen)
  }
}

func TestRequireAuth_QueryTokenForSSE(t *testing.T) {
  r, seen := newAuthRouter(t)
  userID := uuid.New()
  token := signToken(t, testSecret, jwt.MapClaims{
    "sub": userID.String(),
    "exp": time.Now().Add(time.Hour).Unix(),
  })

  req := httptest.NewRequest("GET", "/protected?token="+token, nil)
  w := httptest.NewRecorder()
  r.ServeHTTP(w, req)

  if w.Code != http.StatusNoContent {
    t.Fatalf("status: want=%d got=%d", http.StatusNoContent, w.Code)
  }
  if *seen != userID {
    t.Fatalf("user id in context: want=%v got=%v", userID, *seen)
  }
}

func TestRequireAuth_Rejections(t *testing.T) {
  r, _ := newAuthRouter(t)

  expired := signToken(t, testSecret, jwt.MapClaims{
    "sub": uuid.New().String(),
    "exp": time.Now().Add(-time.Hour).Unix(),
  })
  wrongKey := signToken(t, "other-secret", jwt.MapClaims{
    "sub": uuid.New().String(),
    "exp": time.Now().Add(time.Hour).Unix(),
  })
  badSubject := signToken(t, testSecret, jwt.MapClaims{
    "sub": "not-a-uuid",
    "exp": time.Now().Add(time.Hour).Unix(),
  })

  tests := []struct {
    name   string
    header string
  }{
    {"no token", ""},
    {"expired", "Bearer " + expired},
    {"wrong key", "Bearer " + wrongKey},
    {"bad subject", "Bearer " + badSubject},
    {"malformed header", "Token abc"},
  }
  for _, tt := range tests {
    req := httptest.NewRequest("GET", "/protected", nil)
    if tt.header != "" {
      req.Header.Set("Authorization", tt.header)
    }
    w := httptest.NewRecorder()
    r.ServeHTTP(w, req)
    if w.Code != http.StatusUnauthorized {
      t.Fatalf("%s: want=%d got=%d", tt.name, http.StatusUnauthorized, w.Code)
    }
  }
}
