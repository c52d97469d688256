// Package payments serves payment submission and review.
package payments

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/config"
	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/payments"
	"github.com/codr1/Shuttlers/internal/proofs"
)

const (
	queryTimeout     = 5 * time.Second
	uploadTimeout    = 30 * time.Second
	paymentIDPathKey = "id"
	proofFormField   = "paymentProof"
	sniffLen         = 512
	// Multipart overhead allowed on top of the proof size limit.
	formOverheadBytes = 1 << 20
)

var service *payments.Service

func InitHandlers(svc *payments.Service) {
	service = svc
}

type reviewRequest struct {
	Notes string `json:"reviewNotes"`
}

// POST /api/v1/payments (multipart/form-data)
func HandleSubmit(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	logger := log.Ctx(r.Context())

	maxBytes := service.Policy().MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxProofBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverheadBytes)
	if err := r.ParseMultipartForm(maxBytes + formOverheadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiutil.WriteError(w, r, apiutil.FieldError{Field: proofFormField, Reason: "file is too large"})
			return
		}
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "body", Reason: "must be multipart/form-data"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	bookingID, err := apiutil.ParsePositiveInt64Field(r.FormValue("bookingId"), "bookingId")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	amount, err := apiutil.ParseFloatField(r.FormValue("amount"), "amount")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var upload proofs.Upload
	file, header, err := r.FormFile(proofFormField)
	switch {
	case err == nil:
		defer file.Close()
		sniffed, err := sniffContentType(file)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read proof upload")
			apiutil.WriteError(w, r, apiutil.FieldError{Field: proofFormField, Reason: "could not be read"})
			return
		}
		if declared := header.Header.Get("Content-Type"); declared != "" && !strings.HasPrefix(sniffed, declared) {
			logger.Debug().Str("declared", declared).Str("sniffed", sniffed).Msg("Proof content type differs from declared")
		}
		upload = proofs.Upload{
			OriginalName: header.Filename,
			MimeType:     sniffed,
			Size:         header.Size,
			Body:         file,
		}
	case errors.Is(err, http.ErrMissingFile):
		// Rejected by the proof policy with a field-specific message.
	default:
		logger.Warn().Err(err).Msg("Failed to read proof upload")
		apiutil.WriteError(w, r, apiutil.FieldError{Field: proofFormField, Reason: "could not be read"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	p, err := service.Submit(ctx, payments.SubmitParams{
		BookingID:     bookingID,
		PayerID:       user.ID,
		Amount:        amount,
		Method:        models.PaymentMethod(strings.ToLower(strings.TrimSpace(r.FormValue("paymentMethod")))),
		TransactionID: r.FormValue("transactionId"),
		Notes:         r.FormValue("notes"),
		Proof:         upload,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusCreated, p)
}

// sniffContentType classifies the proof by its leading bytes and rewinds it.
// The part's own Content-Type header is chosen by the client and not trusted.
func sniffContentType(f multipart.File) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// filterFromQuery scopes players to their own payments.
func filterFromQuery(r *http.Request, user *authz.AuthUser) (db.PaymentFilter, error) {
	q := r.URL.Query()
	var f db.PaymentFilter
	var err error
	if f.BookingID, err = apiutil.ParseOptionalInt64Field(q.Get("bookingId"), "bookingId"); err != nil {
		return db.PaymentFilter{}, err
	}
	if raw := q.Get("status"); raw != "" {
		f.Status = models.ReviewStatus(strings.ToLower(raw))
		switch f.Status {
		case models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
		default:
			return db.PaymentFilter{}, apiutil.FieldError{Field: "status", Reason: "must be pending, approved or rejected"}
		}
	}
	dates, err := apiutil.DateRangeFromQuery(r)
	if err != nil {
		return db.PaymentFilter{}, err
	}
	f.Created = dates
	if !dates.To.IsZero() {
		// Inclusive of the whole end day.
		f.Created.To = dates.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if authz.IsAdmin(user) {
		if f.ParticipantID, err = apiutil.ParseOptionalInt64Field(q.Get("participantId"), "participantId"); err != nil {
			return db.PaymentFilter{}, err
		}
	} else {
		f.ParticipantID = user.ID
	}
	return f, nil
}

// GET /api/v1/payments
func HandleList(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	filter, err := filterFromQuery(r, user)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.List(ctx, filter, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, list)
}

// GET /api/v1/payments/stats
func HandleStats(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	filter, err := filterFromQuery(r, user)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := service.Stats(ctx, filter)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, stats)
}

// GET /api/v1/payments/pending
func HandlePending(w http.ResponseWriter, r *http.Request) {
	if apiutil.RequireAdmin(w, r) == nil {
		return
	}
	page, err := apiutil.PageFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.PendingQueue(ctx, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, list)
}

// GET /api/v1/payments/{id}
func HandleDetail(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	id, err := apiutil.PathID(r, paymentIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	p, err := service.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !authz.CanView(user, p.ParticipantID) {
		apiutil.WriteError(w, r, models.ErrForbidden)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, p)
}

// GET /api/v1/bookings/{id}/payments
func HandleListForBooking(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireUser(w, r)
	if user == nil {
		return
	}
	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	list, err := service.ListForBooking(ctx, bookingID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	visible := make([]models.Payment, 0, len(list))
	for _, p := range list {
		if authz.CanView(user, p.ParticipantID) {
			visible = append(visible, p)
		}
	}
	apiutil.Respond(w, r, http.StatusOK, map[string]any{"payments": visible, "total": len(visible)})
}

// POST /api/v1/payments/{id}/approve
func HandleApprove(w http.ResponseWriter, r *http.Request) {
	review(w, r, service.Approve)
}

// POST /api/v1/payments/{id}/reject
func HandleReject(w http.ResponseWriter, r *http.Request) {
	review(w, r, service.Reject)
}

func review(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, reviewerID int64, notes string) (models.Payment, error)) {
	admin := apiutil.RequireAdmin(w, r)
	if admin == nil {
		return
	}
	id, err := apiutil.PathID(r, paymentIDPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req reviewRequest
	if r.ContentLength != 0 {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	p, err := apply(ctx, id, admin.ID, req.Notes)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, p)
}
