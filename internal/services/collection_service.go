package services

import (
	"context"
	"log/slog"
	"time"

	"welfarefund/internal/amqp"
	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// CollectionService records actual payments against funds and publishes
// them for ledger export. The database unique index is the duplicate
// guard; the service maps it to a conflict.
type CollectionService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewCollectionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *CollectionService {
	return &CollectionService{storage: storage, amqpClient: amqpClient, now: time.Now}
}

// Record validates and stores a payment, then publishes an export message.
// Publish failures are logged and swallowed: the payment is already
// durable locally and the worker's backlog pass catches it up.
func (s *CollectionService) Record(ctx context.Context, c core.Collection) (core.Collection, error) {
	if err := c.Validate(); err != nil {
		return core.Collection{}, err
	}

	if err := s.requireOpenFund(ctx, c.FundKind, c.FundID); err != nil {
		return core.Collection{}, err
	}

	st, err := s.storage.GetStaff(ctx, c.StaffID)
	if err != nil {
		return core.Collection{}, err
	}
	if st == nil {
		return core.Collection{}, core.NotFoundErrorf("staff %d not found", c.StaffID)
	}

	if c.RecordedAt.IsZero() {
		c.RecordedAt = s.now()
	}
	created, err := s.storage.CreateCollection(ctx, c)
	if err != nil {
		return core.Collection{}, err
	}

	if err := s.publishExport(ctx, created.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"collection_id", created.ID, "error", err)
		// Don't fail the request - the collection is saved locally
	}

	slog.InfoContext(ctx, "Collection recorded",
		"collection_id", created.ID, "fund_kind", created.FundKind,
		"fund_id", created.FundID, "staff_id", created.StaffID,
		"amount_cents", created.Amount.Cents)
	return created, nil
}

// Get returns a payment record by ID.
func (s *CollectionService) Get(ctx context.Context, id int64) (core.Collection, error) {
	c, err := s.storage.GetCollection(ctx, id)
	if err != nil {
		return core.Collection{}, err
	}
	if c == nil {
		return core.Collection{}, core.NotFoundErrorf("collection %d not found", id)
	}
	return *c, nil
}

// ListByFund returns every payment recorded against a fund.
func (s *CollectionService) ListByFund(ctx context.Context, kind core.FundKind, fundID int64) ([]core.Collection, error) {
	return s.storage.ListCollectionsByFund(ctx, kind, fundID)
}

// CorrectAmount fixes a recorded amount in place and requeues the record
// for export.
func (s *CollectionService) CorrectAmount(ctx context.Context, id int64, amount core.Money) (core.Collection, error) {
	if err := amount.Validate(); err != nil {
		return core.Collection{}, err
	}
	if err := s.storage.UpdateCollectionAmount(ctx, id, amount); err != nil {
		return core.Collection{}, err
	}

	if err := s.publishExport(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"collection_id", id, "error", err)
	}
	return s.Get(ctx, id)
}

// requireOpenFund checks that the fund exists and still accepts payments.
func (s *CollectionService) requireOpenFund(ctx context.Context, kind core.FundKind, fundID int64) error {
	var instance core.FundInstance
	switch kind {
	case core.FundCharity, core.FundEmergency:
		f, err := s.storage.GetFund(ctx, kind, fundID)
		if err != nil {
			return err
		}
		if f != nil {
			instance = *f
		}
	case core.FundChit:
		cf, err := s.storage.GetChitfund(ctx, fundID)
		if err != nil {
			return err
		}
		if cf != nil {
			instance = *cf
		}
	case core.FundLoan:
		l, err := s.storage.GetLoan(ctx, fundID)
		if err != nil {
			return err
		}
		if l != nil {
			instance = *l
		}
	case core.FundEvent:
		e, err := s.storage.GetEvent(ctx, fundID)
		if err != nil {
			return err
		}
		if e != nil {
			instance = *e
		}
	default:
		return core.ValidationErrorf("unknown fund kind %q", kind)
	}

	if instance == nil {
		return core.NotFoundErrorf("%s fund %d not found", kind, fundID)
	}
	if instance.FundStatus(s.now()) != core.StatusActive {
		return core.InvalidStateErrorf("%s fund %d no longer accepts payments", kind, fundID)
	}
	return nil
}

func (s *CollectionService) publishExport(ctx context.Context, collectionID int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message")
		return nil
	}
	return s.amqpClient.PublishCollectionExport(ctx, collectionID)
}
