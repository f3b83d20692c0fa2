package model

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus returns the recognized status for raw, or false for anything else.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(raw), true
	}
	return "", false
}

type ServiceType string

const (
	ServiceGeneral    ServiceType = "general"
	ServiceSpecialist ServiceType = "specialist"
	ServiceFollowup   ServiceType = "followup"
	ServiceTesting    ServiceType = "testing"
)

func ParseServiceType(raw string) (ServiceType, bool) {
	switch ServiceType(raw) {
	case ServiceGeneral, ServiceSpecialist, ServiceFollowup, ServiceTesting:
		return ServiceType(raw), true
	}
	return "", false
}

// Appointment is one patient's reserved spot in a daily service slot.
// SlotDate/SlotName/SlotStart are derived from RequestedTime at booking and
// never change afterwards; Status is the only mutable field.
type Appointment struct {
	ID            string
	PatientName   string
	PhoneNumber   string
	ServiceType   ServiceType
	RequestedTime time.Time
	SlotDate      string
	SlotName      string
	SlotStart     time.Time
	QueueNumber   int
	Status        Status
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
