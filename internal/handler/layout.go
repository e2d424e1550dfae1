package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/service"
	"github.com/mixboard/gateway/internal/store"
	"github.com/mixboard/gateway/pkg/response"
)

type LayoutHandler struct {
	service   *service.LayoutService
	validator *validator.Validate
}

func NewLayoutHandler(svc *service.LayoutService, v *validator.Validate) *LayoutHandler {
	return &LayoutHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/layout
func (h *LayoutHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, model.LayoutResponse{
		Layout:   h.service.Snapshot(),
		LastBeat: h.service.LastBeat(),
	})
}

// AddRegion handles POST /api/layout/regions
func (h *LayoutHandler) AddRegion(c *fiber.Ctx) error {
	var req model.AddRegionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	region, err := h.service.AddRegion(&req)
	if err != nil {
		if errors.Is(err, store.ErrInvalidLane) {
			return response.ValidationError(c, "Unknown lane", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, model.AddRegionResponse{Region: region})
}

// UpdateRegion handles PUT /api/layout/regions/:regionId
func (h *LayoutHandler) UpdateRegion(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("regionId"))
	if err != nil {
		return response.ValidationError(c, "Invalid region ID", nil)
	}

	var req model.UpdateRegionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	region, err := h.service.UpdateRegion(regionID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Region not found")
		}
		if errors.Is(err, store.ErrInvalidLane) {
			return response.ValidationError(c, "Unknown lane", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, region)
}

// RemoveRegion handles DELETE /api/layout/regions/:regionId
func (h *LayoutHandler) RemoveRegion(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("regionId"))
	if err != nil {
		return response.ValidationError(c, "Invalid region ID", nil)
	}

	if err := h.service.RemoveRegion(regionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Region not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// SetLaneState handles PUT /api/layout/lanes/:lane/state
func (h *LayoutHandler) SetLaneState(c *fiber.Ctx) error {
	lane := model.Lane(c.Params("lane"))
	if !lane.Valid() {
		return response.ValidationError(c, "Unknown lane", nil)
	}

	var req model.LaneStateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	state, err := h.service.SetLaneState(lane, req.State)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"lane": lane, "state": state})
}

// SetTotalBeats handles PUT /api/layout/totalBeats
func (h *LayoutHandler) SetTotalBeats(c *fiber.Ctx) error {
	var req model.TotalBeatsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	return response.OK(c, h.service.SetTotalBeats(req.TotalBeats))
}

// Clear handles DELETE /api/layout
func (h *LayoutHandler) Clear(c *fiber.Ctx) error {
	h.service.Clear()
	return response.NoContent(c)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
