package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type collectionService interface {
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error)
	ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.CollectionSession, error)
}

type disbursementService interface {
	FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error)
	ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.DisbursementSession, error)
}

// SettledHook is notified after a disbursement reaches a terminal status.
type SettledHook interface {
	OnDisbursementSettled(ctx context.Context, session *models.DisbursementSession) error
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CallbackKey(kind, reference string) string
}

// Service routes asynchronous provider events to the owning session manager.
// The provider is untrusted: unknown references are dropped with a warning,
// and duplicate deliveries are screened out before any work happens. The
// ledger's reference key remains the final word on money moving once.
type Service struct {
	collections   collectionService
	disbursements disbursementService
	hooks         []SettledHook
	dedupe        dedupeStore
	callbackTTL   time.Duration
	logger        *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Collections   collectionService
	Disbursements disbursementService
	Hooks         []SettledHook
	Dedupe        dedupeStore
	CallbackTTL   time.Duration
	Logger        *logger.Logger
}

// NewService wires the reconciliation router.
func NewService(params ServiceParams) (*Service, error) {
	if params.Collections == nil {
		return nil, fmt.Errorf("collection service required")
	}
	if params.Disbursements == nil {
		return nil, fmt.Errorf("disbursement service required")
	}
	if params.Dedupe == nil {
		return nil, fmt.Errorf("dedupe store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.CallbackTTL
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &Service{
		collections:   params.Collections,
		disbursements: params.Disbursements,
		hooks:         params.Hooks,
		dedupe:        params.Dedupe,
		callbackTTL:   ttl,
		logger:        params.Logger,
	}, nil
}

// HandleProviderEvent applies one provider callback. Duplicate deliveries of
// the same reference are no-ops; a failed application clears the dedupe mark
// so the provider's retry gets another chance.
func (s *Service) HandleProviderEvent(ctx context.Context, kind enums.ProviderEventKind, externalReference, resultCode, resultDescription string) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid event kind %q", kind))
	}
	if externalReference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	key := s.dedupe.CallbackKey(string(kind), externalReference)
	fresh, err := s.dedupe.SetNX(ctx, key, resultCode, s.callbackTTL)
	if err != nil {
		return err
	}
	if !fresh {
		s.logger.Info(ctx, "duplicate provider callback ignored")
		return nil
	}

	if err := s.applyEvent(ctx, kind, externalReference, resultCode, resultDescription); err != nil {
		if delErr := s.dedupe.Del(ctx, key); delErr != nil {
			s.logger.Error(ctx, "clear callback dedupe mark", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) applyEvent(ctx context.Context, kind enums.ProviderEventKind, externalReference, resultCode, resultDescription string) error {
	switch kind {
	case enums.ProviderEventKindCollection:
		session, err := s.collections.FindByCheckoutID(ctx, externalReference)
		if err != nil {
			return err
		}
		if session == nil {
			s.logger.Warn(ctx, "provider callback for unknown collection reference "+externalReference)
			return nil
		}
		_, err = s.collections.ApplyOutcome(ctx, session.ID, resultCode, resultDescription)
		return err

	case enums.ProviderEventKindDisbursement:
		session, err := s.disbursements.FindByProviderRef(ctx, externalReference)
		if err != nil {
			return err
		}
		if session == nil {
			s.logger.Warn(ctx, "provider callback for unknown disbursement reference "+externalReference)
			return nil
		}
		settled, err := s.disbursements.ApplyOutcome(ctx, session.ID, resultCode, resultDescription)
		if err != nil {
			return err
		}
		if settled.Status.IsTerminal() {
			for _, hook := range s.hooks {
				if err := hook.OnDisbursementSettled(ctx, settled); err != nil {
					s.logger.Error(ctx, "disbursement settled hook", err)
				}
			}
		}
		return nil
	}
	return nil
}
