package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/eojeboda/internal/notify"
)

type reminderHandlers struct {
	svc *notify.Service
}

func (h *reminderHandlers) register(c *fiber.Ctx) error {
	var reg notify.Registration
	if err := c.BodyParser(&reg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.Register(c.UserContext(), reg)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":    "registered",
		"deviceUid": sub.DeviceUID,
		"timezone":  sub.Timezone,
		"hour":      sub.Hour,
		"minute":    sub.Minute,
	})
}

func (h *reminderHandlers) unregister(c *fiber.Ctx) error {
	if err := h.svc.Unregister(c.UserContext(), c.Params("uid")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *reminderHandlers) history(c *fiber.Ctx) error {
	deliveries, err := h.svc.History(c.UserContext(), c.QueryInt("limit", notify.DefaultHistoryLimit))
	if err != nil {
		return err
	}
	if deliveries == nil {
		deliveries = []notify.Delivery{}
	}
	return c.JSON(fiber.Map{"deliveries": deliveries})
}

func (h *reminderHandlers) dispatch(c *fiber.Ctx) error {
	res, err := h.svc.Dispatch(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *reminderHandlers) status(c *fiber.Ctx) error {
	st, err := h.svc.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(st)
}
