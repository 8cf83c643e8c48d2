package auth

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(secret, "/healthz"))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/me", func(c *fiber.Ctx) error {
		id, err := CustomerID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		}
		return c.JSON(fiber.Map{"customerId": id})
	})
	return app
}

func TestMiddleware_ValidToken(t *testing.T) {
	app := newApp("s3cret")
	token, err := Sign("s3cret", 42)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	body, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `{"customerId":42}`, string(body))
}

func TestMiddleware_RejectsMissingAndForeignTokens(t *testing.T) {
	app := newApp("s3cret")

	res, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	token, err := Sign("other", 42)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestMiddleware_PublicPathSkipsAuth(t *testing.T) {
	res, err := newApp("s3cret").Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestCustomerID_ClaimTypes(t *testing.T) {
	cases := []struct {
		name  string
		claim any
		want  int
		ok    bool
	}{
		{"float", float64(7), 7, true},
		{"string", "12", 12, true},
		{"bad string", "abc", 0, false},
		{"missing", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				claims := jwt.MapClaims{}
				if tc.claim != nil {
					claims["user_id"] = tc.claim
				}
				c.Locals(ContextKey, &jwt.Token{Claims: claims})
				id, err := CustomerID(c)
				if !tc.ok {
					assert.Error(t, err)
					return nil
				}
				assert.NoError(t, err)
				assert.Equal(t, tc.want, id)
				return nil
			})
			_, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
		})
	}
}
