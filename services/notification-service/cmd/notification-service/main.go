package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mediq-clinic/mediq/libs/config"
	"github.com/mediq-clinic/mediq/libs/db"
	"github.com/mediq-clinic/mediq/libs/httpx"
	"github.com/mediq-clinic/mediq/libs/kafkax"
	otelx "github.com/mediq-clinic/mediq/libs/otel"
	"github.com/mediq-clinic/mediq/libs/runtime"
	"github.com/mediq-clinic/mediq/services/notification-service/internal/consumer"
	"github.com/mediq-clinic/mediq/services/notification-service/internal/inbox"
	"github.com/mediq-clinic/mediq/services/notification-service/internal/message"
	"github.com/mediq-clinic/mediq/services/notification-service/internal/sms"
	"github.com/mediq-clinic/mediq/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookedPayload struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	PhoneNumber   string `json:"phone_number"`
	SlotDate      string `json:"slot_date"`
	SlotName      string `json:"slot_name"`
	QueueNumber   int    `json:"queue_number"`
}

type statusChangedPayload struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	PhoneNumber   string `json:"phone_number"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	}

	deliver := func(ctx context.Context, eventType, appointmentID, phone, body string) {
		recipient := message.NormalizePhone(phone)
		status := "sent"
		detail := map[string]any{}
		if recipient == "" {
			status = "failed"
			detail["error"] = "empty recipient"
		} else if err := smsSender.Send(ctx, recipient, body); err != nil {
			status = "failed"
			detail["error"] = err.Error()
			logger.Error("sms send failed", "err", err, "appointment_id", appointmentID)
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: appointmentID,
			EventType:     eventType,
			Recipient:     recipient,
			Body:          body,
			ProviderID:    smsSender.ProviderID(),
			Status:        status,
			Detail:        detail,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err, "appointment_id", appointmentID)
		}
		logger.Info("notification processed", "appointment_id", appointmentID, "event_type", eventType, "status", status)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	bookedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_BOOKED_TOPIC", "queue.appointment.booked.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload bookedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booked payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.PhoneNumber == "" {
			logger.Error("missing booked fields", "topic", msg.Topic)
			return nil
		}
		body := message.RenderBooked(payload.PatientName, payload.SlotName, payload.SlotDate, payload.QueueNumber)
		deliver(ctx, msg.Topic, payload.AppointmentID, payload.PhoneNumber, body)
		return nil
	})
	go bookedConsumer.Run(ctx)

	statusConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_STATUS_TOPIC", "queue.appointment.status_changed.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload statusChangedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid status payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.PhoneNumber == "" || payload.NewStatus == "" {
			logger.Error("missing status fields", "topic", msg.Topic)
			return nil
		}
		body := message.RenderStatus(payload.PatientName, payload.NewStatus)
		deliver(ctx, msg.Topic, payload.AppointmentID, payload.PhoneNumber, body)
		return nil
	})
	go statusConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
