package middleware

import "github.com/gofiber/fiber/v2"

const AgeCookieName = "age_confirmed"

// AgeGate blocks content routes until the 18+ confirmation has been given
// this session. The flag lives in a session cookie so it is re-asked every
// new browser session, never persisted durably.
func AgeGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Cookies(AgeCookieName) != "true" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Age confirmation required",
			})
		}
		return c.Next()
	}
}

// ConfirmAge sets the session-scoped confirmation cookie.
func ConfirmAge(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     AgeCookieName,
		Value:    "true",
		HTTPOnly: true,
		// No expiry: session cookie, gone when the browser closes.
	})
	return c.JSON(fiber.Map{"message": "Age confirmed"})
}
