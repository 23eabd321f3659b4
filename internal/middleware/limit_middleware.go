package middleware

import (
	"github.com/gofiber/fiber/v2"

	"musegen_backend/pkg/character"
	"musegen_backend/pkg/utils/jwt"
)

// CheckCharacterLimit rejects character creation once the account cap is
// reached. Runs before the handler so no store write ever happens for a
// rejected creation.
func CheckCharacterLimit(repo *character.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		characters := repo.Load(claims.Username)
		if len(characters) >= character.MaxCharactersPerAccount {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "You have reached your character limit. Please delete a character before creating a new one.",
				"current_count": len(characters),
				"max_limit":     character.MaxCharactersPerAccount,
			})
		}

		return c.Next()
	}
}
