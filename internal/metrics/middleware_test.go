package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsRequestsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/points/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/points/:id", "204"))

	req := httptest.NewRequest(http.MethodGet, "/points/42", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/points/:id", "204"))
	if after != before+1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}
