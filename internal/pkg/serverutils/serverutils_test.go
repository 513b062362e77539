package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("thing not found")

func decode(t *testing.T, body io.Reader) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.NewDecoder(body).Decode(&r))
	return r
}

func TestErrorHandlerMiddleware_MapsSentinels(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(map[error]int{errMissing: fiber.StatusNotFound}))
	app.Get("/missing", func(c *fiber.Ctx) error { return fmt.Errorf("lookup: %w", errMissing) })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusConflict, "busy") })

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/missing", 404, "lookup: thing not found"},
		{"/boom", 500, "internal server error"},
		{"/fiber", 409, "busy"},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
		assert.Equal(t, tt.message, decode(t, resp.Body).Message, tt.path)
	}
}

type createThing struct {
	Name string `json:"name" validate:"required"`
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(createThing{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["Name"])

	assert.NoError(t, ValidateRequest(createThing{Name: "x"}))
}

func TestJwtMiddleware(t *testing.T) {
	secret := "test-secret"
	app := fiber.New()
	app.Use(JwtMiddleware(secret, false))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(PlayerID(c)) })

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "player-7",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "player-7", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))

	bad := httptest.NewRequest("GET", "/", nil)
	bad.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(bad)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
