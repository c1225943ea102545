package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/http/dto"
	"github.com/midnight-markets/backend/internal/middleware"
	"github.com/midnight-markets/backend/internal/services"
)

type OfferHandler struct {
	svc *services.ContractService
	log *zap.Logger
}

func NewOfferHandler(svc *services.ContractService, log *zap.Logger) *OfferHandler {
	return &OfferHandler{svc: svc, log: log}
}

func (h *OfferHandler) PostOffer(c *fiber.Ctx) error {
	var req dto.PostOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.PostOffer{
		OfferID:     req.OfferID,
		MarketID:    req.MarketID,
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		DetailsHash: req.DetailsHash,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func (h *OfferHandler) ListOffers(c *fiber.Ctx) error {
	st, err := h.svc.State(c.Context())
	if err != nil {
		h.log.Error("list offers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st.Offers})
}

func (h *OfferHandler) AcceptOffer(c *fiber.Ctx) error {
	offerID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	var req dto.AcceptOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.AcceptOffer{
		OfferID:         offerID,
		BuyerID:         req.BuyerID,
		MarketID:        req.MarketID,
		DepositedAmount: req.DepositedAmount,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func (h *OfferHandler) SubmitProof(c *fiber.Ctx) error {
	offerID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	var req dto.SubmitProofRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.SubmitProof{
		OfferID:   offerID,
		SellerID:  req.SellerID,
		ProofHash: req.ProofHash,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

func (h *OfferHandler) ReleaseFunds(c *fiber.Ctx) error {
	offerID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	var req dto.ReleaseFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	res, err := h.svc.Execute(c.Context(), caller, contract.ReleaseFunds{
		OfferID:   offerID,
		SheriffID: req.SheriffID,
		MarketID:  req.MarketID,
	})
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

// CancelOffer routes to the sheriff or seller cancel operation depending on
// which actor the body declares.
func (h *OfferHandler) CancelOffer(c *fiber.Ctx) error {
	offerID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	var req dto.CancelOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	var op contract.Op
	switch {
	case req.SheriffID != "":
		op = contract.CancelOfferBySheriff{OfferID: offerID, SheriffID: req.SheriffID, MarketID: req.MarketID}
	case req.SellerID != "":
		op = contract.CancelOfferBySeller{OfferID: offerID, SellerID: req.SellerID}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "sheriff_id or seller_id is required"})
	}

	res, err := h.svc.Execute(c.Context(), caller, op)
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}

// SetHidden routes to the owner or sheriff moderation operation depending on
// which actor the body declares.
func (h *OfferHandler) SetHidden(c *fiber.Ctx) error {
	offerID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	var req dto.SetHiddenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetIdentity(c)
	var op contract.Op
	switch {
	case req.SheriffID != "":
		op = contract.SetOfferHiddenBySheriff{OfferID: offerID, MarketID: req.MarketID, Hidden: req.Hidden, SheriffID: req.SheriffID}
	case req.CallerID != "":
		op = contract.SetOfferHidden{OfferID: offerID, Hidden: req.Hidden, CallerID: req.CallerID}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "caller_id or sheriff_id is required"})
	}

	res, err := h.svc.Execute(c.Context(), caller, op)
	if err != nil {
		return respondOpError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Data})
}
