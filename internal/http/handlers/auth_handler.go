package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/auth"
	"github.com/midnight-markets/backend/internal/config"
	"github.com/midnight-markets/backend/internal/http/dto"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// CreateSession issues a JWT binding the session to one participant identity.
// Identity is self-asserted here; a production front would verify a wallet
// signature before issuing.
func (h *AuthHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.AuthSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Identity == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "identity is required"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.Identity, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, Identity: req.Identity})
}
