package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mediq-clinic/mediq/services/queue-service/internal/lifecycle"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/queue"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/slots"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/stats"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/storage"
)

// Booker reserves a queue number and persists the appointment.
type Booker interface {
	Book(ctx context.Context, appt *model.Appointment) error
}

// StatusApplier validates and applies a lifecycle transition.
type StatusApplier interface {
	Apply(ctx context.Context, id string, requested string) (model.Appointment, error)
}

// AppointmentReader answers point and filtered lookups.
type AppointmentReader interface {
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	QueryFiltered(ctx context.Context, f storage.Filter) ([]model.Appointment, error)
}

type AppointmentsHandler struct {
	booker   Booker
	machine  StatusApplier
	reader   AppointmentReader
	resolver *slots.Resolver
	logger   *slog.Logger
}

func NewAppointmentsHandler(booker Booker, machine StatusApplier, reader AppointmentReader, resolver *slots.Resolver, logger *slog.Logger) *AppointmentsHandler {
	return &AppointmentsHandler{
		booker:   booker,
		machine:  machine,
		reader:   reader,
		resolver: resolver,
		logger:   logger,
	}
}

type bookAppointmentRequest struct {
	PatientName     string `json:"patientName"`
	PhoneNumber     string `json:"phoneNumber"`
	AppointmentTime string `json:"appointmentTime"`
	ServiceType     string `json:"serviceType"`
	Notes           string `json:"notes"`
}

type bookAppointmentResponse struct {
	ID          string `json:"id"`
	QueueNumber int    `json:"queueNumber"`
	SlotStart   string `json:"slotStart"`
}

type appointmentItem struct {
	ID            string `json:"id"`
	PatientName   string `json:"patientName"`
	PhoneNumber   string `json:"phoneNumber"`
	ServiceType   string `json:"serviceType"`
	RequestedTime string `json:"requestedTime"`
	SlotDate      string `json:"slotDate"`
	SlotName      string `json:"slotName"`
	SlotStart     string `json:"slotStart"`
	QueueNumber   int    `json:"queueNumber"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type listAppointmentsResponse struct {
	Appointments []appointmentItem `json:"appointments"`
	Stats        stats.Summary     `json:"stats"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.AppointmentTime = strings.TrimSpace(req.AppointmentTime)
	req.ServiceType = strings.TrimSpace(req.ServiceType)

	if req.PatientName == "" || req.PhoneNumber == "" || req.AppointmentTime == "" || req.ServiceType == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	serviceType, ok := model.ParseServiceType(req.ServiceType)
	if !ok {
		http.Error(w, "unknown serviceType", http.StatusBadRequest)
		return
	}
	requestedTime, err := time.Parse(time.RFC3339, req.AppointmentTime)
	if err != nil {
		http.Error(w, "invalid appointmentTime", http.StatusBadRequest)
		return
	}

	slot := h.resolver.Resolve(requestedTime)
	appt := &model.Appointment{
		PatientName:   req.PatientName,
		PhoneNumber:   req.PhoneNumber,
		ServiceType:   serviceType,
		RequestedTime: requestedTime,
		SlotDate:      slot.Key.Date,
		SlotName:      slot.Key.Name,
		SlotStart:     slot.Start,
		Notes:         strings.TrimSpace(req.Notes),
	}

	if err := h.booker.Book(r.Context(), appt); err != nil {
		if errors.Is(err, queue.ErrRetriesExhausted) {
			http.Error(w, "could not assign a queue number, please try again", http.StatusConflict)
			return
		}
		h.logger.Error("booking failed", "err", err)
		http.Error(w, "service temporarily unavailable, please try again", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusCreated, bookAppointmentResponse{
		ID:          appt.ID,
		QueueNumber: appt.QueueNumber,
		SlotStart:   appt.SlotStart.Format(time.RFC3339),
	})
}

func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	appt, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment fetch failed", "err", err, "appointment_id", id)
		http.Error(w, "service temporarily unavailable, please try again", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, toItem(appt))
}

func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := storage.Filter{
		Status: stats.NormalizeStatusFilter(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}

	appts, err := h.reader.QueryFiltered(r.Context(), filter)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		http.Error(w, "service temporarily unavailable, please try again", http.StatusServiceUnavailable)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	writeJSON(w, http.StatusOK, listAppointmentsResponse{
		Appointments: items,
		Stats:        stats.Compute(appts),
	})
}

func (h *AppointmentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := h.machine.Apply(r.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidStatus):
			http.Error(w, "status must be one of pending, in_progress, completed, cancelled", http.StatusBadRequest)
		case errors.Is(err, model.ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, lifecycle.ErrIllegalTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, model.ErrConflict):
			http.Error(w, "appointment was updated concurrently, please try again", http.StatusConflict)
		default:
			h.logger.Error("status update failed", "err", err, "appointment_id", id)
			http.Error(w, "service temporarily unavailable, please try again", http.StatusServiceUnavailable)
		}
		return
	}

	writeJSON(w, http.StatusOK, toItem(appt))
}

func toItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		ID:            appt.ID,
		PatientName:   appt.PatientName,
		PhoneNumber:   appt.PhoneNumber,
		ServiceType:   string(appt.ServiceType),
		RequestedTime: appt.RequestedTime.UTC().Format(time.RFC3339),
		SlotDate:      appt.SlotDate,
		SlotName:      appt.SlotName,
		SlotStart:     appt.SlotStart.UTC().Format(time.RFC3339),
		QueueNumber:   appt.QueueNumber,
		Status:        string(appt.Status),
		Notes:         appt.Notes,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
