package checkpoint

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Checkpoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.UserID, _ = c.Locals("user_id").(string)
		if req.UserID == "" || (req.Latitude == 0 && req.Longitude == 0) {
			return fiber.NewError(fiber.StatusBadRequest, "coordinates required")
		}
		if req.Type != "" {
			if _, ok := ParseType(string(req.Type)); !ok {
				return fiber.NewError(fiber.StatusBadRequest, "unknown checkpoint type")
			}
		}
		cp, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(cp)
	})

	r.Get("/trip/:tripID", func(c *fiber.Ctx) error {
		cps, err := svc.ListForTrip(c.Context(), c.Params("tripID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(cps)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		cp, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "checkpoint not found")
		}
		return c.JSON(cp)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Checkpoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		cp, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(cp)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
