package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"musegen_backend/internal/model"
	"musegen_backend/pkg/entitlement"
	"musegen_backend/pkg/utils/jwt"
)

type SubscriptionController struct {
	entitlements *entitlement.Manager
	validate     *validator.Validate
}

func NewSubscriptionController(entitlements *entitlement.Manager) *SubscriptionController {
	return &SubscriptionController{entitlements: entitlements, validate: validator.New()}
}

type UpgradeInput struct {
	Tier model.Tier `json:"tier" validate:"required"`
}

// ListPlans returns the purchasable tiers with prices and daily limits.
func (sc *SubscriptionController) ListPlans(c *fiber.Ctx) error {
	return c.JSON(entitlement.Plans())
}

// GetMySubscription returns the reconciled record plus the current
// allowance snapshot.
func (sc *SubscriptionController) GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := sc.entitlements.GetSubscription(claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not load subscription",
		})
	}

	allowance, err := sc.entitlements.CheckCanGenerate(claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not load subscription",
		})
	}

	return c.JSON(fiber.Map{
		"subscription": sub,
		"allowance":    allowance,
	})
}

// Upgrade switches the user to a paid tier. The trial is auto-granted once
// on first access and never purchasable here.
func (sc *SubscriptionController) Upgrade(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(UpgradeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if err := sc.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tier is required",
		})
	}

	sub, err := sc.entitlements.Upgrade(claims.Username, input.Tier)
	if err != nil {
		if errors.Is(err, entitlement.ErrTierNotPurchasable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "This tier cannot be purchased",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upgrade subscription",
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Subscription upgraded successfully",
		"subscription": sub,
	})
}
