package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustSympa/agariki/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthRequired(secret), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		return c.SendString(userID)
	})
	return app
}

func TestAuthRequiredSetsUserID(t *testing.T) {
	userID := uuid.New()
	token, err := utils.GenerateToken(userID, "a@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := newProtectedApp("secret").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredRejectsMissingAndMalformedHeaders(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"bad token": "Bearer abc",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := newProtectedApp("secret").Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}
