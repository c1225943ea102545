package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/http/dto"
	"github.com/midnight-markets/backend/internal/middleware"
	"github.com/midnight-markets/backend/internal/services"
)

// ContractHandler exposes the raw operation surface: one generic call endpoint
// taking the function name and positional parameters, plus the full state
// snapshot.
type ContractHandler struct {
	svc *services.ContractService
	log *zap.Logger
}

func NewContractHandler(svc *services.ContractService, log *zap.Logger) *ContractHandler {
	return &ContractHandler{svc: svc, log: log}
}

func (h *ContractHandler) Call(c *fiber.Ctx) error {
	var req dto.CallRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Op == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "op is required"})
	}

	caller := middleware.GetIdentity(c)
	res := h.svc.Call(c.Context(), caller, req.Op, req.Params)
	if !res.Success {
		return c.Status(StatusForCode(res.Code)).JSON(dto.ErrorResponse{
			Error: res.Message,
			Code:  string(res.Code),
		})
	}
	return c.JSON(res)
}

func (h *ContractHandler) State(c *fiber.Ctx) error {
	st, err := h.svc.State(c.Context())
	if err != nil {
		h.log.Error("state snapshot failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

// StatusForCode maps operation failure codes to HTTP statuses.
func StatusForCode(code contract.Code) int {
	switch code {
	case contract.CodeNotFound:
		return fiber.StatusNotFound
	case contract.CodeAlreadyExists, contract.CodeWrongState:
		return fiber.StatusConflict
	case contract.CodeUnauthorized:
		return fiber.StatusForbidden
	case contract.CodeInvalidAmount:
		return fiber.StatusBadRequest
	case contract.CodeInsufficientEscrow:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}
