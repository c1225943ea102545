package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/http/dto"
	"github.com/midnight-markets/backend/internal/middleware"
	"github.com/midnight-markets/backend/internal/services"
)

// MarketHandler exposes typed market routes. Each route is a thin veneer over
// the same operations the generic call endpoint runs.
type MarketHandler struct {
	svc *services.ContractService
	log *zap.Logger
}

func NewMarketHandler(svc *services.ContractService, log *zap.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, log: log}
}

func (h *MarketHandler) CreateMarket(c *fiber.Ctx) error {
	var req dto.CreateMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.CreateMarket{
		MarketID:      req.MarketID,
		SheriffID:     req.SheriffID,
		MarketName:    req.MarketName,
		SheriffFeeBps: req.SheriffFeeBps,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	st, err := h.svc.State(c.Context())
	if err != nil {
		h.log.Error("list markets failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st.Markets})
}

func (h *MarketHandler) SetHidden(c *fiber.Ctx) error {
	marketID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid market id"})
	}
	var req dto.SetHiddenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.SetMarketHidden{
		MarketID: marketID,
		Hidden:   req.Hidden,
		CallerID: req.CallerID,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func (h *MarketHandler) SetPlatformFee(c *fiber.Ctx) error {
	var req dto.SetPlatformFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.SetPlatformFee{
		NewFeeBps: req.NewFeeBps,
		CallerID:  req.CallerID,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func respondOpError(c *fiber.Ctx, err error) error {
	code := contract.CodeOf(err)
	return c.Status(StatusForCode(code)).JSON(dto.ErrorResponse{
		Error: err.Error(),
		Code:  string(code),
	})
}
