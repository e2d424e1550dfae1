package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/mixboard/gateway/internal/client"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/service"
	"github.com/mixboard/gateway/pkg/response"
)

type LibraryHandler struct {
	library   *service.LibraryService
	layout    *service.LayoutService
	validator *validator.Validate
}

func NewLibraryHandler(library *service.LibraryService, layout *service.LayoutService, v *validator.Validate) *LibraryHandler {
	return &LibraryHandler{
		library:   library,
		layout:    layout,
		validator: v,
	}
}

// AddSong handles POST /api/library/songs
func (h *LibraryHandler) AddSong(c *fiber.Ctx) error {
	var req model.SongRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.library.AddSong(c.Context(), &req); err != nil {
		if errors.Is(err, client.ErrServiceFailure) {
			return response.GeneratorError(c, "Song could not be processed")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, fiber.Map{"url": req.URL})
}

// RemoveSong handles DELETE /api/library/songs
func (h *LibraryHandler) RemoveSong(c *fiber.Ctx) error {
	var req model.SongRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.library.RemoveSong(c.Context(), &req); err != nil {
		return response.ServiceError(c, err.Error())
	}

	removed := h.layout.RemoveRegionsForSong(req.URL)

	return response.OK(c, fiber.Map{"url": req.URL, "removedRegions": removed})
}
