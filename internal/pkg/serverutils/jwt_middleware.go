package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	playerIDKey     = "player_id"
	anonymousPlayer = "anonymous"
)

// JwtMiddleware reads the player id from a bearer token's user_id claim.
// Without required, requests lacking a token run as the anonymous player.
func JwtMiddleware(secret string, required bool) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			if required {
				return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
			}
			ctx.Locals(playerIDKey, anonymousPlayer)
			return ctx.Next()
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}
		playerID, _ := claims["user_id"].(string)
		if playerID == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		ctx.Locals(playerIDKey, playerID)
		return ctx.Next()
	}
}

func PlayerID(ctx *fiber.Ctx) string {
	if id, ok := ctx.Locals(playerIDKey).(string); ok && id != "" {
		return id
	}
	return anonymousPlayer
}
