package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name       string
		role       interface{}
		statusCode int
	}{
		{name: "teacher", role: "teacher", statusCode: fiber.StatusOK},
		{name: "admin mixed case", role: " Admin ", statusCode: fiber.StatusOK},
		{name: "student", role: "student", statusCode: fiber.StatusForbidden},
		{name: "missing", role: nil, statusCode: fiber.StatusForbidden},
		{name: "wrong type", role: 42, statusCode: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tc.role != nil {
					c.Locals("user_role", tc.role)
				}
				return c.Next()
			})
			app.Use(RequireRole("admin", "teacher"))
			app.Get("/analysis", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/analysis", nil))
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}
