package models

import "time"

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodBankTransfer, MethodCard, MethodOther:
		return true
	}
	return false
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ProofArtifact references an uploaded proof-of-payment held by the blob store.
type ProofArtifact struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

type Review struct {
	ReviewedBy int64     `json:"reviewedBy"`
	ReviewedAt time.Time `json:"reviewedAt"`
	Notes      string    `json:"reviewNotes,omitempty"`
}

type Payment struct {
	ID            int64         `json:"id"`
	BookingID     int64         `json:"bookingId"`
	ParticipantID int64         `json:"participantId"`
	Amount        float64       `json:"amount"`
	Method        PaymentMethod `json:"paymentMethod"`
	Proof         ProofArtifact `json:"paymentProof"`
	TransactionID string        `json:"transactionId,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Status        ReviewStatus  `json:"status"`
	Review        *Review       `json:"review,omitempty"`
	PaymentDate   time.Time     `json:"paymentDate"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type PaymentStats struct {
	TotalPayments  int     `json:"totalPayments"`
	TotalAmount    float64 `json:"totalAmount"`
	AvgAmount      float64 `json:"avgAmount"`
	Pending        int     `json:"pendingPayments"`
	Approved       int     `json:"approvedPayments"`
	Rejected       int     `json:"rejectedPayments"`
	PendingAmount  float64 `json:"pendingAmount"`
	ApprovedAmount float64 `json:"approvedAmount"`
}
