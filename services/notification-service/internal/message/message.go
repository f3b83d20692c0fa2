package message

import (
	"fmt"
	"strings"
)

// RenderStatus builds the patient-facing text for a status change.
func RenderStatus(patientName, status string) string {
	switch status {
	case "pending":
		return fmt.Sprintf("Hi %s, your appointment is pending confirmation.", patientName)
	case "in_progress":
		return fmt.Sprintf("Hi %s, the doctor is now ready to see you.", patientName)
	case "completed":
		return fmt.Sprintf("Hi %s, thank you for your visit!", patientName)
	default:
		return fmt.Sprintf("Hi %s, your appointment status: %s", patientName, status)
	}
}

// RenderBooked builds the booking confirmation carrying the queue number.
func RenderBooked(patientName, slotName, slotDate string, queueNumber int) string {
	return fmt.Sprintf("Hi %s, your appointment is booked for the %s slot on %s. Your queue number is %d.",
		patientName, slotName, slotDate, queueNumber)
}

// NormalizePhone strips everything but digits, matching what the delivery
// provider expects.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
