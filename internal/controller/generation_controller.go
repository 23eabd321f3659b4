package controller

import (
	"github.com/gofiber/fiber/v2"

	"musegen_backend/pkg/character"
	"musegen_backend/pkg/entitlement"
	"musegen_backend/pkg/generation"
	"musegen_backend/pkg/store"
	"musegen_backend/pkg/utils/jwt"
)

type GenerationController struct {
	repo         *character.Repository
	entitlements *entitlement.Manager
	generator    generation.Service
}

func NewGenerationController(repo *character.Repository, entitlements *entitlement.Manager, generator generation.Service) *GenerationController {
	return &GenerationController{repo: repo, entitlements: entitlements, generator: generator}
}

type ChatInput struct {
	Message string                   `json:"message"`
	History []generation.ChatMessage `json:"history"`
}

// GenerateImages consumes one generation unit and appends the results to
// the character's gallery, pruning the oldest images past the cap.
func (gc *GenerationController) GenerateImages(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	id := c.Params("id")

	characters := gc.repo.Load(claims.Username)
	profile, found := character.Find(characters, id)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Character not found",
		})
	}

	params := new(generation.ImageParams)
	if err := c.BodyParser(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	allowance, err := gc.entitlements.TryConsume(claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not check generation allowance",
		})
	}
	if !allowance.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":        "Daily generation limit reached. Upgrade your plan for a larger allowance.",
			"subscription": allowance,
		})
	}

	images, err := gc.generator.GenerateCharacterImages(c.Context(), profile, *params)
	if err != nil {
		// Single attempt, no retry: the user re-triggers the action.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Image generation failed. Please try again.",
		})
	}

	profile.SingleImages = append(images, profile.SingleImages...)
	characters = character.Upsert(characters, profile)
	saved := gc.repo.Save(claims.Username, characters)

	response := fiber.Map{
		"images":       images,
		"subscription": allowance,
		"saved":        saved,
	}
	if !saved {
		response["warning"] = store.CapacityWarning
	}
	return c.JSON(response)
}

// Chat consumes one generation unit and returns the persona's reply. Any
// embedded image directive is handed back to the client, which decides
// whether to spend another unit rendering it.
func (gc *GenerationController) Chat(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	id := c.Params("id")

	characters := gc.repo.Load(claims.Username)
	profile, found := character.Find(characters, id)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Character not found",
		})
	}

	input := new(ChatInput)
	if err := c.BodyParser(input); err != nil || input.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	allowance, err := gc.entitlements.TryConsume(claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not check generation allowance",
		})
	}
	if !allowance.Allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":        "Daily generation limit reached. Upgrade your plan for a larger allowance.",
			"subscription": allowance,
		})
	}

	reply, err := gc.generator.Chat(c.Context(), profile, input.History, input.Message)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Chat generation failed. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"reply":        reply,
		"subscription": allowance,
	})
}
