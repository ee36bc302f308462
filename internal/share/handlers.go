package share

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/trips/:tripID", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			RecipientEmail string `json:"recipient_email"`
		}
		if err := c.BodyParser(&body); err != nil || body.RecipientEmail == "" {
			return fiber.NewError(fiber.StatusBadRequest, "recipient_email required")
		}

		ownerID, _ := c.Locals("user_id").(string)
		grant, err := svc.Share(c.Context(), c.Params("tripID"), ownerID, body.RecipientEmail)
		if errors.Is(err, ErrRecipientNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(grant)
	})

	r.Delete("/trips/:tripID/:recipientID", authMiddleware, func(c *fiber.Ctx) error {
		ownerID, _ := c.Locals("user_id").(string)
		if err := svc.Unshare(c.Context(), c.Params("tripID"), ownerID, c.Params("recipientID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/with-me", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		trips, err := svc.SharedWithMe(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trips)
	})

	r.Get("/public", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		trips, err := svc.PublicTrips(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trips)
	})
}
