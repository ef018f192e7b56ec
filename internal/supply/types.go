package supply

import (
	"strings"
	"time"
)

// Urgency is the worker-reported urgency of a supply need.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ParseUrgency maps free text to an Urgency, defaulting to normal.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyCritical:
		return UrgencyCritical
	case UrgencyHigh:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

// Status is the lifecycle state of a SupplyRequest.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusModified   Status = "MODIFIED"
	StatusRejected   Status = "REJECTED"
	StatusQuestioned Status = "QUESTIONED"
)

// OpenStatuses are the statuses a supervisor command may act on.
var OpenStatuses = []Status{StatusPending, StatusQuestioned}

// IsOpen reports whether the request still awaits a decision.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusQuestioned
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusModified || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.IsOpen() || s.IsTerminal()
}

// Entities is the structured content extracted from a supply message.
type Entities struct {
	Item           string   `json:"item"`
	NormalizedItem string   `json:"normalizedItem"`
	Quantity       *float64 `json:"quantity"`
	Unit           *string  `json:"unit"`
	Urgency        Urgency  `json:"urgency"`
}

// HistoryContext summarizes a crew's prior orders of one item.
// OrderCount is zero when the crew has never ordered the item.
type HistoryContext struct {
	AverageQuantity *float64 `json:"averageQuantity"`
	LastSupplier    *string  `json:"lastSupplier"`
	AverageCost     *float64 `json:"averageCost"`
	OrderCount      int      `json:"orderCount"`
}

// SupplierRecommendation is a directory entry for a normalized item.
type SupplierRecommendation struct {
	Name           string   `json:"name"`
	EstimatedTotal *float64 `json:"estimatedTotal"`
	DeliveryDays   *int     `json:"deliveryDays"`
}

// SupplyRequest is a persisted procurement request.
type SupplyRequest struct {
	ID                  string     `json:"id"`
	OriginalMessageID   *string    `json:"originalMessageId"`
	CrewID              string     `json:"crewId"`
	WorkerID            string     `json:"workerId"`
	Item                string     `json:"item"`
	NormalizedItem      string     `json:"normalizedItem"`
	Quantity            *float64   `json:"quantity"`
	Unit                *string    `json:"unit"`
	Urgency             Urgency    `json:"urgency"`
	Status              Status     `json:"status"`
	SuggestedQuantity   *float64   `json:"suggestedQuantity"`
	SuggestedSupplier   *string    `json:"suggestedSupplier"`
	EstimatedTotal      *float64   `json:"estimatedTotal"`
	ResponseTimeMinutes *int       `json:"responseTimeMinutes"`
	ApprovedBy          *string    `json:"approvedBy"`
	ApprovedAt          *time.Time `json:"approvedAt"`
	ModifiedQuantity    *int       `json:"modifiedQuantity"`
	RejectionReason     *string    `json:"rejectionReason"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// Ref returns the short reference shown to supervisors (last four
// characters of the identifier, lower-cased).
func (r *SupplyRequest) Ref() string {
	return ShortRef(r.ID)
}

// ShortRef returns the last four characters of id, lower-cased.
func ShortRef(id string) string {
	if len(id) <= 4 {
		return strings.ToLower(id)
	}
	return strings.ToLower(id[len(id)-4:])
}

// Transition is one atomic state change applied to an open request.
// Stores set ResponseTimeMinutes only when the request has none yet.
type Transition struct {
	To                  Status
	At                  time.Time
	ResponseTimeMinutes int
	ApprovedBy          *string
	ApprovedAt          *time.Time
	ModifiedQuantity    *int
	RejectionReason     *string
}

// Apply mutates r as a store would. Callers must hold whatever lock
// guards r.
func (t Transition) Apply(r *SupplyRequest) {
	r.Status = t.To
	if r.ResponseTimeMinutes == nil {
		m := t.ResponseTimeMinutes
		r.ResponseTimeMinutes = &m
	}
	if t.ApprovedBy != nil {
		r.ApprovedBy = t.ApprovedBy
	}
	if t.ApprovedAt != nil {
		r.ApprovedAt = t.ApprovedAt
	}
	if t.ModifiedQuantity != nil {
		r.ModifiedQuantity = t.ModifiedQuantity
	}
	if t.RejectionReason != nil {
		r.RejectionReason = t.RejectionReason
	}
}

// SupplyOrder is a historical, fulfilled or in-flight order.
type SupplyOrder struct {
	ID             string     `json:"id"`
	CrewID         string     `json:"crewId"`
	Item           string     `json:"item"`
	NormalizedItem string     `json:"normalizedItem"`
	Quantity       *float64   `json:"quantity"`
	Unit           *string    `json:"unit"`
	Supplier       *string    `json:"supplier"`
	Cost           *float64   `json:"cost"`
	OrderedAt      time.Time  `json:"orderedAt"`
	DeliveredAt    *time.Time `json:"deliveredAt"`
	Notes          *string    `json:"notes"`
}

// Message categories produced by message analysis.
const (
	CategoryDelayReport   = "delay_report"
	CategoryClarification = "clarification"
	CategoryCompletion    = "completion"
	CategorySafety        = "safety"
	CategoryMaterialNeed  = "material_need"
)

// Message is a worker message relayed to the supervisor.
type Message struct {
	ID               string    `json:"id"`
	WorkerID         string    `json:"workerId"`
	SpanishRaw       string    `json:"spanishRaw"`
	EnglishRaw       string    `json:"englishRaw"`
	EnglishFormatted string    `json:"englishFormatted"`
	Category         string    `json:"category"`
	Urgency          Urgency   `json:"urgency"`
	DeliveryID       *string   `json:"deliveryId"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SupervisorReply is a free-text supervisor answer to a Message.
type SupervisorReply struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"messageId"`
	EnglishRaw    string    `json:"englishRaw"`
	SpanishTrans  string    `json:"spanishTrans"`
	ActionSummary string    `json:"actionSummary"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
