package sync

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, syncer *Syncer, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		res := syncer.Sync(c.Context(), userID)
		switch res.State {
		case StateUnauthenticated:
			return fiber.NewError(fiber.StatusUnauthorized, "no active session for user")
		case StateAlreadyRunning:
			return c.Status(fiber.StatusConflict).JSON(res)
		case StateFailed:
			return c.Status(fiber.StatusBadGateway).JSON(res)
		}
		return c.JSON(res)
	})

	r.Get("/status", authMiddleware, func(c *fiber.Ctx) error {
		last := syncer.LastResult()
		if last == nil {
			return c.JSON(fiber.Map{"state": "never_synced"})
		}
		return c.JSON(last)
	})
}
