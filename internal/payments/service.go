// Package payments reconciles proof-of-payment submissions against bookings
// through a pending, approved or rejected review.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/clock"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/events"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/proofs"
	"github.com/codr1/Shuttlers/internal/slotlock"
)

const (
	maxTransactionIDLen = 100
	maxNotesLen         = 500
	maxReviewNotesLen   = 200
)

type Service struct {
	db     *db.DB
	store  proofs.Store
	policy ProofPolicy
	locker slotlock.Locker
	events events.Publisher
	clock  clock.Clock
}

func NewService(database *db.DB, store proofs.Store, policy ProofPolicy, locker slotlock.Locker, publisher events.Publisher, clk clock.Clock) *Service {
	if locker == nil {
		locker = slotlock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{db: database, store: store, policy: policy, locker: locker, events: publisher, clock: clk}
}

// Policy is the upload policy applied to proofs.
func (s *Service) Policy() ProofPolicy { return s.policy }

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "payments").Logger()
}

type SubmitParams struct {
	BookingID     int64
	PayerID       int64
	Amount        float64
	Method        models.PaymentMethod
	TransactionID string
	Notes         string
	Proof         proofs.Upload
}

func (p *SubmitParams) validate(policy ProofPolicy) error {
	if p.Amount < 0 {
		return models.Invalid("amount", "must not be negative")
	}
	if !p.Method.Valid() {
		return models.Invalid("paymentMethod", "must be one of cash, upi, bank_transfer, card, other")
	}
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	if len(p.TransactionID) > maxTransactionIDLen {
		return models.Invalid("transactionId", "must be at most %d characters", maxTransactionIDLen)
	}
	if len(p.Notes) > maxNotesLen {
		return models.Invalid("notes", "must be at most %d characters", maxNotesLen)
	}
	return policy.Check(p.Proof)
}

// Submit records a pending payment for one booking participant. The proof is
// uploaded only after every cheap check has passed.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (models.Payment, error) {
	b, err := s.db.Queries.GetBooking(ctx, params.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, fmt.Errorf("booking %d: %w", params.BookingID, models.ErrNotFound)
		}
		return models.Payment{}, fmt.Errorf("get booking: %w", err)
	}
	if !b.HasParticipant(params.PayerID) {
		return models.Payment{}, fmt.Errorf("participant %d is not on booking %d: %w", params.PayerID, b.ID, models.ErrForbidden)
	}
	if err := s.ensureNoPayment(ctx, s.db.Queries, b.ID, params.PayerID); err != nil {
		return models.Payment{}, err
	}
	if err := params.validate(s.policy); err != nil {
		return models.Payment{}, err
	}

	release, err := slotlock.LockAll(ctx, s.locker, slotlock.KeyPayment(b.ID, params.PayerID))
	if err != nil {
		return models.Payment{}, fmt.Errorf("lock payment: %w", err)
	}
	defer release()

	if err := s.ensureNoPayment(ctx, s.db.Queries, b.ID, params.PayerID); err != nil {
		return models.Payment{}, err
	}

	artifact, err := s.store.Put(ctx, params.Proof)
	if err != nil {
		return models.Payment{}, fmt.Errorf("store payment proof: %w", err)
	}

	now := s.clock.Now()
	p := models.Payment{
		BookingID:     b.ID,
		ParticipantID: params.PayerID,
		Amount:        params.Amount,
		Method:        params.Method,
		Proof:         artifact,
		TransactionID: params.TransactionID,
		Notes:         params.Notes,
		Status:        models.ReviewPending,
		PaymentDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.ID, err = s.db.Queries.InsertPayment(ctx, p)
	if err != nil {
		logger := s.logger(ctx)
		logger.Warn().Err(err).Str("proof_public_id", artifact.PublicID).Msg("Payment proof stored but payment was not recorded")
		if errors.Is(err, models.ErrDuplicate) {
			return models.Payment{}, fmt.Errorf("payment for booking %d by participant %d: %w", b.ID, params.PayerID, models.ErrDuplicate)
		}
		return models.Payment{}, fmt.Errorf("insert payment: %w", err)
	}

	logger := s.logger(ctx)
	logger.Info().
		Int64("payment_id", p.ID).
		Int64("booking_id", b.ID).
		Int64("participant_id", params.PayerID).
		Float64("amount", p.Amount).
		Msg("Payment submitted")

	created, err := s.Get(ctx, p.ID)
	if err != nil {
		return models.Payment{}, err
	}
	events.Emit(ctx, s.events, events.PaymentSubmitted, created)
	return created, nil
}

func (s *Service) ensureNoPayment(ctx context.Context, q *db.Queries, bookingID, payerID int64) error {
	_, err := q.GetPaymentForPayer(ctx, bookingID, payerID)
	switch {
	case err == nil:
		return fmt.Errorf("payment for booking %d by participant %d: %w", bookingID, payerID, models.ErrDuplicate)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("check existing payment: %w", err)
	}
}

// Approve accepts a pending payment and settles the booking's payment status.
func (s *Service) Approve(ctx context.Context, id, reviewerID int64, notes string) (models.Payment, error) {
	return s.review(ctx, id, reviewerID, models.ReviewApproved, notes)
}

// Reject declines a pending payment. A reason is required.
func (s *Service) Reject(ctx context.Context, id, reviewerID int64, notes string) (models.Payment, error) {
	if strings.TrimSpace(notes) == "" {
		return models.Payment{}, models.Invalid("reviewNotes", "a reason is required when rejecting")
	}
	return s.review(ctx, id, reviewerID, models.ReviewRejected, notes)
}

func (s *Service) review(ctx context.Context, id, reviewerID int64, status models.ReviewStatus, notes string) (models.Payment, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > maxReviewNotesLen {
		return models.Payment{}, models.Invalid("reviewNotes", "must be at most %d characters", maxReviewNotesLen)
	}

	var settled models.PaymentStatus
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.clock.Now()
		n, err := tx.Queries.ReviewPayment(ctx, db.ReviewPaymentParams{
			ID:         id,
			Status:     status,
			ReviewerID: reviewerID,
			Notes:      notes,
			Now:        now,
		})
		if err != nil {
			return err
		}
		p, err := tx.Queries.GetPayment(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
			}
			return err
		}
		if n == 0 {
			return fmt.Errorf("payment %d is %s: %w", id, p.Status, models.ErrNotPending)
		}
		if status != models.ReviewApproved {
			return nil
		}
		settled, err = settle(ctx, tx.Queries, p.BookingID)
		if err != nil {
			return err
		}
		return tx.Queries.SetBookingPaymentStatus(ctx, p.BookingID, settled, now)
	})
	if err != nil {
		return models.Payment{}, fmt.Errorf("review payment: %w", err)
	}

	logger := s.logger(ctx)
	evt := logger.Info().Int64("payment_id", id).Int64("reviewer_id", reviewerID).Str("status", string(status))
	if settled != "" {
		evt = evt.Str("booking_payment_status", string(settled))
	}
	evt.Msg("Payment reviewed")

	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Payment{}, err
	}
	key := events.PaymentRejected
	if status == models.ReviewApproved {
		key = events.PaymentApproved
	}
	events.Emit(ctx, s.events, key, p)
	return p, nil
}

// settle derives a booking's payment status from its approved payers.
func settle(ctx context.Context, q *db.Queries, bookingID int64) (models.PaymentStatus, error) {
	b, err := q.GetBooking(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("get booking: %w", err)
	}
	approved, err := q.CountApprovedPayers(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("count approved payers: %w", err)
	}
	switch {
	case approved >= len(b.Participants) && len(b.Participants) > 0:
		return models.PaymentStatusPaid, nil
	case approved > 0:
		return models.PaymentStatusPartial, nil
	}
	return b.PaymentStatus, nil
}

func (s *Service) HasApprovedPayment(ctx context.Context, bookingID, payerID int64) (bool, error) {
	ok, err := s.db.Queries.HasApprovedPayment(ctx, bookingID, payerID)
	if err != nil {
		return false, fmt.Errorf("check approved payment: %w", err)
	}
	return ok, nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Payment, error) {
	p, err := s.db.Queries.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
		}
		return models.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

type ListResult struct {
	Payments []models.Payment `json:"payments"`
	Total    int              `json:"total"`
}

func (s *Service) List(ctx context.Context, filter db.PaymentFilter, page db.Page) (ListResult, error) {
	payments, total, err := s.db.Queries.ListPayments(ctx, filter, page.Normalize(20, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list payments: %w", err)
	}
	return ListResult{Payments: payments, Total: total}, nil
}

// PendingQueue lists payments awaiting review, newest first.
func (s *Service) PendingQueue(ctx context.Context, page db.Page) (ListResult, error) {
	payments, total, err := s.db.Queries.ListPayments(ctx, db.PaymentFilter{Status: models.ReviewPending}, page.Normalize(10, 100))
	if err != nil {
		return ListResult{}, fmt.Errorf("list pending payments: %w", err)
	}
	return ListResult{Payments: payments, Total: total}, nil
}

func (s *Service) ListForBooking(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	if _, err := s.db.Queries.GetBooking(ctx, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", bookingID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	payments, _, err := s.db.Queries.ListPayments(ctx, db.PaymentFilter{BookingID: bookingID}, db.Page{Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("list booking payments: %w", err)
	}
	return payments, nil
}

func (s *Service) Stats(ctx context.Context, filter db.PaymentFilter) (models.PaymentStats, error) {
	stats, err := s.db.Queries.PaymentStats(ctx, filter)
	if err != nil {
		return models.PaymentStats{}, fmt.Errorf("payment stats: %w", err)
	}
	return stats, nil
}
