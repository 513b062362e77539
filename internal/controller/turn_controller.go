package controller

import (
	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/pkg/serverutils"
	"narrative-engine-be/internal/service"
	"narrative-engine-be/pkg/engine/turn"

	"github.com/gofiber/fiber/v2"
)

type ITurnController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ListBySession(ctx *fiber.Ctx) error
	Conversation(ctx *fiber.Ctx) error
}

type turnController struct {
	service service.ITurnService
	auth    fiber.Handler
}

func NewTurnController(service service.ITurnService, auth fiber.Handler) ITurnController {
	return &turnController{service: service, auth: auth}
}

func (c *turnController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/turn/v1")
	h.Use(c.auth)
	h.Post("", c.Create)
	h.Get("session/:sessionId", c.ListBySession)
	h.Get("session/:sessionId/conversation", c.Conversation)
	h.Get(":id", c.Show)
}

// Create answers as soon as the turn record exists; poll Show or watch
// the session socket for the outcome.
func (c *turnController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Turn accepted", res))
}

func (c *turnController) Show(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Get(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get turn", res))
}

func (c *turnController) ListBySession(ctx *fiber.Ctx) error {
	sessionID, err := paramUUID(ctx, "sessionId")
	if err != nil {
		return err
	}

	res, err := c.service.ListBySession(ctx.UserContext(), sessionID, ctx.QueryInt("limit", turn.DefaultListLimit))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get turns", res))
}

func (c *turnController) Conversation(ctx *fiber.Ctx) error {
	sessionID, err := paramUUID(ctx, "sessionId")
	if err != nil {
		return err
	}

	res, err := c.service.Conversation(ctx.UserContext(), sessionID, ctx.QueryInt("limit", turn.DefaultConversationLimit))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get conversation", res))
}
