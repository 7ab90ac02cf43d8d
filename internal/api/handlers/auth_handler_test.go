package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/services"
	"github.com/kritiqo/core/internal/user"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *services.UserService, *middleware.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupHandlerTestDB(t)
	userService := services.NewUserService(db, user.NewManager(t.TempDir()))
	jwtManager := middleware.NewJWTManager("test-secret", time.Hour)
	handler := NewAuthHandler(userService, jwtManager, services.NewLogService(db))

	router := gin.New()
	router.POST("/api/auth/login", handler.Login)

	protected := router.Group("")
	protected.Use(middleware.JWTMiddleware(jwtManager))
	protected.GET("/api/auth/me", handler.GetCurrentUser)
	protected.POST("/api/auth/refresh", handler.RefreshToken)

	return router, userService, jwtManager
}

func postLogin(t *testing.T, router *gin.Engine, username, password string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, _ := http.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return w, decoded
}

func TestLoginIssuesValidToken(t *testing.T) {
	router, userService, jwtManager := newAuthTestRouter(t)

	created, err := userService.CreateUser("marcel", "secret123", "Chez Marcel")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	w, decoded := postLogin(t, router, "marcel", "secret123")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	data := decoded["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}

	claims, err := jwtManager.ValidateToken(token)
	if err != nil {
		t.Fatalf("token should validate: %v", err)
	}
	if claims.UserID != created.ID || claims.Username != "marcel" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, userService, _ := newAuthTestRouter(t)

	if _, err := userService.CreateUser("marcel", "secret123", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}

	t.Run("wrong password", func(t *testing.T) {
		w, decoded := postLogin(t, router, "marcel", "wrong-password")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		errObj := decoded["error"].(map[string]interface{})
		if errObj["code"] != "AUTH_FAILED" {
			t.Errorf("unexpected error code %v", errObj["code"])
		}
		if errObj["message"] != "Identifiant ou mot de passe incorrect" {
			t.Errorf("expected a French message, got %v", errObj["message"])
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		w, _ := postLogin(t, router, "nobody", "secret123")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		w, _ := postLogin(t, router, "marcel", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestGetCurrentUser(t *testing.T) {
	router, userService, jwtManager := newAuthTestRouter(t)

	created, err := userService.CreateUser("marcel", "secret123", "Chez Marcel")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := jwtManager.GenerateToken(created.ID, created.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req, _ := http.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := decoded["data"].(map[string]interface{})
	if data["username"] != "marcel" || data["business_name"] != "Chez Marcel" {
		t.Errorf("unexpected profile: %v", data)
	}
}

func TestRefreshTokenRequiresAuth(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	req, _ := http.NewRequest("POST", "/api/auth/refresh", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
