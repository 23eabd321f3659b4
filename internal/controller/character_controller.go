package controller

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/character"
	"musegen_backend/pkg/entitlement"
	"musegen_backend/pkg/generation"
	"musegen_backend/pkg/store"
	"musegen_backend/pkg/utils/jwt"
)

type CharacterController struct {
	repo         *character.Repository
	entitlements *entitlement.Manager
	generator    generation.Service
	validate     *validator.Validate
}

func NewCharacterController(repo *character.Repository, entitlements *entitlement.Manager, generator generation.Service) *CharacterController {
	return &CharacterController{
		repo:         repo,
		entitlements: entitlements,
		generator:    generator,
		validate:     validator.New(),
	}
}

// ListMyCharacters returns the user's full collection.
func (cc *CharacterController) ListMyCharacters(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	return c.JSON(cc.repo.Load(claims.Username))
}

// CreateCharacter persists a new profile. A missing storyline is generated
// best-effort, and the first portrait is generated when the daily quota
// permits; the character is saved either way.
func (cc *CharacterController) CreateCharacter(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	profile := model.CharacterProfile{}
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if err := cc.validate.Var(profile.Name, "required"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Character name is required",
		})
	}

	characters := cc.repo.Load(claims.Username)
	if len(characters) >= character.MaxCharactersPerAccount {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You have reached your character limit. Please delete a character before creating a new one.",
		})
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.SingleImages == nil {
		profile.SingleImages = []model.GalleryImage{}
	}
	if profile.Videos == nil {
		profile.Videos = []model.VideoAsset{}
	}
	if profile.Storyboards == nil {
		profile.Storyboards = []model.Storyboard{}
	}

	if profile.Storyline == "" {
		storyline, err := cc.generator.GenerateStoryline(c.Context(), profile)
		if err != nil {
			log.Printf("Could not generate storyline for %s: %v", profile.Name, err)
		} else {
			profile.Storyline = storyline
		}
	}

	// The initial portrait counts against the daily quota like any other
	// generation. A denied or failed attempt still saves the character.
	if len(profile.SingleImages) == 0 {
		allowance, err := cc.entitlements.TryConsume(claims.Username)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check generation allowance",
			})
		}
		if allowance.Allowed {
			images, err := cc.generator.GenerateCharacterImages(c.Context(), profile, generation.ImageParams{Quantity: 1})
			if err != nil {
				log.Printf("Could not generate initial image for %s: %v", profile.Name, err)
			} else {
				profile.SingleImages = images
			}
		}
	}

	characters = character.Upsert(characters, profile)
	saved := cc.repo.Save(claims.Username, characters)

	response := fiber.Map{
		"message":   "Character created",
		"character": profile,
		"saved":     saved,
	}
	if !saved {
		response["warning"] = store.CapacityWarning
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// UpdateCharacter replaces an existing profile, re-enforcing the image cap.
func (cc *CharacterController) UpdateCharacter(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	id := c.Params("id")

	characters := cc.repo.Load(claims.Username)
	if _, found := character.Find(characters, id); !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Character not found",
		})
	}

	profile := new(model.CharacterProfile)
	if err := c.BodyParser(profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	profile.ID = id

	characters = character.Upsert(characters, *profile)
	saved := cc.repo.Save(claims.Username, characters)

	response := fiber.Map{
		"message":   "Character updated",
		"character": profile,
		"saved":     saved,
	}
	if !saved {
		response["warning"] = store.CapacityWarning
	}
	return c.JSON(response)
}

// DeleteCharacter removes a profile. Deleting an absent id is a no-op.
func (cc *CharacterController) DeleteCharacter(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)
	id := c.Params("id")

	characters := character.Delete(cc.repo.Load(claims.Username), id)
	if !cc.repo.Save(claims.Username, characters) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": store.CapacityWarning,
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
