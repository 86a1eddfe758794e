package domain

type JobStatus string

const (
	JobPending    JobStatus = "Pending"
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobCancelled  JobStatus = "Cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

type Approval string

const (
	ApprovalPending  Approval = "Pending"
	ApprovalApproved Approval = "Approved"
	ApprovalDenied   Approval = "Denied"
)

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "Pending"
	ClaimAccepted ClaimStatus = "Accepted"
	ClaimDeclined ClaimStatus = "Declined"
)

// Role is the acting party's role as resolved by the authentication layer.
type Role string

const (
	RoleClient     Role = "client"
	RoleContractor Role = "contractor"
)

type JobRequest struct {
	ID             string    `json:"id" db:"id"`
	ClientID       string    `json:"client_id" db:"client_id"`
	ContractorID   *string   `json:"contractor_id,omitempty" db:"contractor_id"`
	CompanyID      *string   `json:"company_id,omitempty" db:"company_id"`
	ServiceLabel   string    `json:"service_label" db:"service_label"`
	Status         JobStatus `json:"status" db:"status" enum:"Pending,InProgress,Completed,Cancelled"`
	ClientApproval Approval  `json:"client_approval" db:"client_approval" enum:"Pending,Approved,Denied"`
	PostedAt       string    `json:"posted_at" db:"posted_at" format:"date-time"`
	FulfilledAt    *string   `json:"fulfilled_at,omitempty" db:"fulfilled_at" format:"date-time"`
}

// HasContractor reports whether a contractor has been assigned.
func (j JobRequest) HasContractor() bool {
	return j.ContractorID != nil && *j.ContractorID != ""
}

type ClaimRequest struct {
	ID           string      `json:"id" db:"id"`
	JobID        string      `json:"job_id" db:"job_id"`
	ContractorID string      `json:"contractor_id" db:"contractor_id"`
	Status       ClaimStatus `json:"status" db:"status" enum:"Pending,Accepted,Declined"`
	RequestedAt  string      `json:"requested_at" db:"requested_at" format:"date-time"`
}

type Transaction struct {
	ID           string  `json:"id" db:"id"`
	JobID        string  `json:"job_id" db:"job_id"`
	ClientID     string  `json:"client_id" db:"client_id"`
	ContractorID string  `json:"contractor_id" db:"contractor_id"`
	Amount       float64 `json:"amount" db:"amount"`
	Method       string  `json:"method" db:"method"`
	Date         string  `json:"date" db:"date" format:"date-time"`
}

type Review struct {
	ID           string  `json:"id" db:"id"`
	JobID        string  `json:"job_id" db:"job_id"`
	ClientID     string  `json:"client_id" db:"client_id"`
	ContractorID string  `json:"contractor_id" db:"contractor_id"`
	Rating       int     `json:"rating" db:"rating"`
	Comment      *string `json:"comment,omitempty" db:"comment"`
	Date         string  `json:"date" db:"date" format:"date-time"`
}

// Contractor is the per-contractor aggregate. Rating stays nil until the
// first review; Earnings only ever grows.
type Contractor struct {
	ID        string   `json:"id" db:"id"`
	FullName  string   `json:"full_name" db:"full_name"`
	Service   *string  `json:"service,omitempty" db:"service"`
	CompanyID *string  `json:"company_id,omitempty" db:"company_id"`
	Rating    *float64 `json:"rating,omitempty" db:"rating"`
	Earnings  float64  `json:"earnings" db:"earnings"`
	CreatedAt string   `json:"created_at" db:"created_at" format:"date-time"`
}

type ContractorProfile struct {
	Contractor Contractor `json:"contractor"`
	Reviews    []Review   `json:"reviews"`
}

type Company struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	ServiceType *string `json:"service_type,omitempty" db:"service_type"`
	Location    *string `json:"location,omitempty" db:"location"`
	CreatedAt   string  `json:"created_at" db:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64   `json:"id" db:"id"`
	TS         string  `json:"ts" db:"ts" format:"date-time"`
	Type       string  `json:"type" db:"type"`
	EntityKind string  `json:"entity_kind" db:"entity_kind"`
	EntityID   *string `json:"entity_id,omitempty" db:"entity_id"`
	ActorID    string  `json:"actor_id" db:"actor_id"`
	Payload    *string `json:"payload,omitempty" db:"payload_json"`
}
