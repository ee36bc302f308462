package photoimport

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/trips/:tripID/photos", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Items []Item `json:"items"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(req.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "items required")
		}

		userID, _ := c.Locals("user_id").(string)
		report, err := svc.Import(c.Context(), userID, c.Params("tripID"), req.Items)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(report)
	})
}
