package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/service"
	"github.com/mixboard/gateway/pkg/response"
)

type SessionHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewSessionHandler(svc *service.SessionService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/session
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req model.SessionStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sessionID, err := h.service.Start(c.Context(), req.Email)
	if err != nil {
		return response.GeneratorError(c, err.Error())
	}

	return response.Created(c, model.SessionStartResponse{SessionID: sessionID})
}
