package outbox

import "time"

// Kafka topic per event type; the appointment id keys the message so events
// about the same appointment stay ordered within a partition.
const (
	TopicAppointmentBooked        = "queue.appointment.booked.v1"
	TopicAppointmentStatusChanged = "queue.appointment.status_changed.v1"
)

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentBooked is the payload for TopicAppointmentBooked.
type AppointmentBooked struct {
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	PhoneNumber   string    `json:"phone_number"`
	ServiceType   string    `json:"service_type"`
	SlotDate      string    `json:"slot_date"`
	SlotName      string    `json:"slot_name"`
	SlotStart     time.Time `json:"slot_start"`
	QueueNumber   int       `json:"queue_number"`
}

// AppointmentStatusChanged is the payload for TopicAppointmentStatusChanged.
// Consumers should treat it as a hint and re-query for authoritative state.
type AppointmentStatusChanged struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	PhoneNumber   string `json:"phone_number"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	QueueNumber   int    `json:"queue_number"`
}
