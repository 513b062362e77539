package controller

import (
	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/pkg/serverutils"
	"narrative-engine-be/internal/service"
	"narrative-engine-be/pkg/engine/checkpoint"

	"github.com/gofiber/fiber/v2"
)

type ICheckpointController interface {
	RegisterRoutes(r fiber.Router)
	Save(ctx *fiber.Ctx) error
	ListBySession(ctx *fiber.Ctx) error
	Restore(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type checkpointController struct {
	service service.ICheckpointService
	auth    fiber.Handler
}

func NewCheckpointController(service service.ICheckpointService, auth fiber.Handler) ICheckpointController {
	return &checkpointController{service: service, auth: auth}
}

func (c *checkpointController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/checkpoint/v1")
	h.Use(c.auth)
	h.Post("", c.Save)
	h.Get("session/:sessionId", c.ListBySession)
	h.Post(":id/restore", c.Restore)
	h.Delete(":id", c.Delete)
}

func (c *checkpointController) Save(ctx *fiber.Ctx) error {
	var req dto.SaveCheckpointRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Save(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success save checkpoint", res))
}

func (c *checkpointController) ListBySession(ctx *fiber.Ctx) error {
	sessionID, err := paramUUID(ctx, "sessionId")
	if err != nil {
		return err
	}

	res, err := c.service.List(ctx.UserContext(), sessionID, ctx.QueryInt("limit", checkpoint.DefaultListLimit))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get checkpoints", res))
}

func (c *checkpointController) Restore(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Restore(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success restore checkpoint", res))
}

func (c *checkpointController) Delete(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete checkpoint", nil))
}
