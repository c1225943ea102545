package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/http/dto"
	"github.com/midnight-markets/backend/internal/middleware"
	"github.com/midnight-markets/backend/internal/naming"
	"github.com/midnight-markets/backend/internal/services"
)

type NameHandler struct {
	svc *services.ContractService
	log *zap.Logger
}

func NewNameHandler(svc *services.ContractService, log *zap.Logger) *NameHandler {
	return &NameHandler{svc: svc, log: log}
}

// Preview quotes the hash and price for a candidate name without touching
// state.
func (h *NameHandler) Preview(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: naming.QuoteFor(name)})
}

// Register prices the plaintext name server-side and commits only its hash.
func (h *NameHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterNameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}

	quote := naming.QuoteFor(req.Name)
	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.RegisterName{
		NameHash: quote.NameHash,
		Claimant: req.Claimant,
		Price:    quote.Price,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}
