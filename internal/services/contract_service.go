package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/events"
	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/models"
	"github.com/midnight-markets/backend/internal/repositories"
)

// Auditor records committed operations. Satisfied by repositories.AuditRepo.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// ContractService fronts the state machine for transports: it executes
// operations, records an audit entry for every committed one, and publishes
// the change to the event stream. Audit and publish failures are logged, not
// surfaced; the operation has already committed.
type ContractService struct {
	engine *contract.Engine
	audit  Auditor
	pub    events.Publisher
	log    *zap.Logger
}

func NewContractService(engine *contract.Engine, audit Auditor, pub events.Publisher, log *zap.Logger) *ContractService {
	return &ContractService{engine: engine, audit: audit, pub: pub, log: log}
}

// Call decodes and executes one named operation on behalf of caller.
func (s *ContractService) Call(ctx context.Context, caller, name string, params []any) contract.CallResult {
	res := s.engine.Call(ctx, caller, name, params)
	if !res.Success {
		return res
	}
	s.recordAndPublish(ctx, caller, name, res)
	return res
}

// Execute runs a typed operation, for callers that already hold an Op.
func (s *ContractService) Execute(ctx context.Context, caller string, op contract.Op) (*contract.Result, error) {
	res, err := s.engine.Execute(ctx, caller, op)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, caller, op.Name(), contract.CallResult{
		Success: true, Message: res.Message, Data: res.Data,
	})
	return res, nil
}

func (s *ContractService) State(ctx context.Context) (*ledger.State, error) {
	return s.engine.State(ctx)
}

// SweepTimeouts runs one timeout pass and publishes the resolutions.
func (s *ContractService) SweepTimeouts(ctx context.Context) (*contract.SweepResult, error) {
	res, err := s.engine.SweepTimeouts(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range res.Refunded {
		s.publishOfferChange(ctx, id, models.OfferStatusCancelled, contract.OpBuyerRefundTimeout)
	}
	for _, id := range res.Claimed {
		s.publishOfferChange(ctx, id, models.OfferStatusFundsReleased, contract.OpSellerRefundTimeout)
	}
	return res, nil
}

func (s *ContractService) recordAndPublish(ctx context.Context, caller, op string, res contract.CallResult) {
	entityType, entityID := operationTarget(op, res.Data)

	if s.audit != nil {
		entry := models.AuditLog{
			Actor:      caller,
			Operation:  op,
			EntityType: entityType,
			EntityID:   entityID,
			Meta:       res.Data,
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			s.log.Error("audit log write failed", zap.String("operation", op), zap.Error(err))
		}
	}

	if s.pub != nil {
		event := events.Event{
			Type: eventTypeFor(op),
			Payload: map[string]any{
				"operation":   op,
				"actor":       caller,
				"entity_type": entityType,
				"message":     res.Message,
				"data":        res.Data,
			},
		}
		if entityID != nil {
			event.Payload["entity_id"] = *entityID
		}
		if err := s.pub.Publish(ctx, events.StreamContract, event); err != nil {
			s.log.Error("event publish failed", zap.String("operation", op), zap.Error(err))
		}
	}
}

func (s *ContractService) publishOfferChange(ctx context.Context, offerID uint64, status, op string) {
	if s.pub == nil {
		return
	}
	event := events.Event{
		Type: events.EventOfferStatusChanged,
		Payload: map[string]any{
			"operation":   op,
			"entity_type": "offer",
			"entity_id":   offerID,
			"status":      status,
		},
	}
	if err := s.pub.Publish(ctx, events.StreamContract, event); err != nil {
		s.log.Error("event publish failed", zap.String("operation", op), zap.Error(err))
	}
}

func eventTypeFor(op string) string {
	switch op {
	case contract.OpCreateMarket:
		return events.EventMarketCreated
	case contract.OpPostOffer, contract.OpAcceptOffer, contract.OpSubmitProof,
		contract.OpReleaseFunds, contract.OpCancelOfferBySheriff, contract.OpCancelOfferBySeller,
		contract.OpBuyerRefundTimeout, contract.OpSellerRefundTimeout:
		return events.EventOfferStatusChanged
	case contract.OpRegisterName:
		return events.EventNameRegistered
	default:
		return events.EventOperationApplied
	}
}

func operationTarget(op string, data any) (string, *uint64) {
	switch op {
	case contract.OpCreateMarket, contract.OpSetMarketHidden:
		if m, ok := data.(*models.Market); ok {
			id := m.ID
			return "market", &id
		}
		return "market", nil
	case contract.OpSetPlatformFee:
		return "platform", nil
	case contract.OpRegisterName:
		return "name", nil
	case contract.OpReleaseFunds:
		if out, ok := data.(*contract.ReleaseOutcome); ok && out.Offer != nil {
			id := out.Offer.ID
			return "offer", &id
		}
		return "offer", nil
	default:
		if o, ok := data.(*models.Offer); ok {
			id := o.ID
			return "offer", &id
		}
		return "offer", nil
	}
}

var _ Auditor = (*repositories.AuditRepo)(nil)
