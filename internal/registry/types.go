package registry

import (
	"fmt"
	"strings"
	"time"
)

// Direction of a letter relative to the office.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// ParseDirection validates and normalizes a direction string.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(raw))) {
	case DirectionIncoming:
		return DirectionIncoming, nil
	case DirectionOutgoing:
		return DirectionOutgoing, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, raw)
	}
}

// Status is the processing state of a letter. Letters are never hard
// deleted; archiving is a status transition.
type Status string

const (
	StatusReceived Status = "RECEIVED"
	StatusScanned  Status = "SCANNED"
	StatusAssigned Status = "ASSIGNED"
	StatusArchived Status = "ARCHIVED"
)

// ParseStatus validates and normalizes a status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusReceived:
		return StatusReceived, nil
	case StatusScanned:
		return StatusScanned, nil
	case StatusAssigned:
		return StatusAssigned, nil
	case StatusArchived:
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}

// Confidentiality controls who may view a letter.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "PUBLIC"
	ConfidentialityInternal     Confidentiality = "INTERNAL"
	ConfidentialityConfidential Confidentiality = "CONFIDENTIAL"
)

// ParseConfidentiality validates and normalizes a confidentiality string.
func ParseConfidentiality(raw string) (Confidentiality, error) {
	switch Confidentiality(strings.ToUpper(strings.TrimSpace(raw))) {
	case ConfidentialityPublic:
		return ConfidentialityPublic, nil
	case ConfidentialityInternal:
		return ConfidentialityInternal, nil
	case ConfidentialityConfidential:
		return ConfidentialityConfidential, nil
	default:
		return "", fmt.Errorf("%w: unknown confidentiality %q", ErrInvalidInput, raw)
	}
}

// FileRef locates the letter's scan in the blob store.
type FileRef struct {
	Bucket   string `json:"file_bucket,omitempty"`
	Path     string `json:"file_path,omitempty"`
	Name     string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Letter is the core correspondence record.
type Letter struct {
	ID                  string          `json:"id"`
	RefNo               string          `json:"ref_no"`
	Direction           Direction       `json:"direction"`
	Status              Status          `json:"status"`
	Confidentiality     Confidentiality `json:"confidentiality"`
	DateReceived        time.Time       `json:"date_received"`
	DateOnLetter        *time.Time      `json:"date_on_letter,omitempty"`
	SenderName          string          `json:"sender_name"`
	SenderOrg           string          `json:"sender_org,omitempty"`
	RecipientDepartment string          `json:"recipient_department,omitempty"`
	Subject             string          `json:"subject"`
	Summary             string          `json:"summary,omitempty"`
	Category            string          `json:"category,omitempty"`
	Tags                []string        `json:"tags,omitempty"`
	File                FileRef         `json:"file"`
	CreatedBy           string          `json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Year returns the scope year the letter's reference number was allocated
// in, falling back to the received date for unparsable reference numbers.
func (l Letter) Year() int {
	if y, ok := refNoYear(l.RefNo); ok {
		return y
	}
	return l.DateReceived.Year()
}

// Patch is a partial update of mutable letter fields. Nil fields are left
// untouched; created_by is never mutable.
type Patch struct {
	Direction           *Direction
	Status              *Status
	Confidentiality     *Confidentiality
	DateReceived        *time.Time
	DateOnLetter        *time.Time
	SenderName          *string
	SenderOrg           *string
	RecipientDepartment *string
	Subject             *string
	Summary             *string
	Category            *string
	Tags                []string
}

// FieldNames lists the fields a patch touches, for the audit trail.
func (p Patch) FieldNames() []string {
	var names []string
	if p.Direction != nil {
		names = append(names, "direction")
	}
	if p.Status != nil {
		names = append(names, "status")
	}
	if p.Confidentiality != nil {
		names = append(names, "confidentiality")
	}
	if p.DateReceived != nil {
		names = append(names, "date_received")
	}
	if p.DateOnLetter != nil {
		names = append(names, "date_on_letter")
	}
	if p.SenderName != nil {
		names = append(names, "sender_name")
	}
	if p.SenderOrg != nil {
		names = append(names, "sender_org")
	}
	if p.RecipientDepartment != nil {
		names = append(names, "recipient_department")
	}
	if p.Subject != nil {
		names = append(names, "subject")
	}
	if p.Summary != nil {
		names = append(names, "summary")
	}
	if p.Category != nil {
		names = append(names, "category")
	}
	if p.Tags != nil {
		names = append(names, "tags")
	}
	return names
}

// Filter narrows ListLetters results. Zero values mean "no constraint".
type Filter struct {
	Direction       Direction
	Status          Status
	Confidentiality Confidentiality
	Query           string
	Limit           int
}
