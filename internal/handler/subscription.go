package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/newsletter/newsletter/internal/apperr"
	"github.com/newsletter/newsletter/internal/handler/dto"
	"github.com/newsletter/newsletter/internal/metrics"
	"github.com/newsletter/newsletter/internal/model"
	"github.com/newsletter/newsletter/internal/telemetry"
)

// SubscriberStore persists subscribers.
type SubscriberStore interface {
	InsertSubscriber(ctx context.Context, email, name string) (*model.Subscriber, error)
}

// SubscriptionHandler handles subscription submissions.
type SubscriptionHandler struct {
	store    SubscriberStore
	tracer   *telemetry.Tracer
	metrics  metrics.Recorder
	validate *validator.Validate
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
// A nil tracer or recorder disables tracing or metrics.
func NewSubscriptionHandler(store SubscriberStore, tracer *telemetry.Tracer, recorder metrics.Recorder) *SubscriptionHandler {
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &SubscriptionHandler{
		store:    store,
		tracer:   tracer,
		metrics:  recorder,
		validate: newFormValidator(),
	}
}

// Subscribe handles POST /subscriptions.
//
// A malformed form is answered with 400 before any database work. A stored
// subscriber yields 200 with an empty body; any persistence failure yields
// 500 with a generic message.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.subscribe(r).Write(w)
}

func (h *SubscriptionHandler) subscribe(r *http.Request) Result {
	req, err := h.decode(r)
	if err != nil {
		h.metrics.IncSubscriptionRejected()
		h.tracer.Logger(r.Context()).Warn("invalid subscription form", slog.Any("error", err))
		return resultForError(err)
	}

	ctx, span := h.tracer.Start(r.Context(), "Adding a new subscriber",
		slog.String("subscriber_email", req.Email),
		slog.String("subscriber_name", req.Name),
	)
	defer span.End()

	start := time.Now()
	sub, err := h.store.InsertSubscriber(ctx, req.Email, req.Name)
	h.metrics.ObserveInsertDuration(time.Since(start))

	if err != nil {
		kind := apperr.KindOf(err)
		span.RecordError(err)
		span.Logger().Error("failed to add subscriber",
			slog.String("error_kind", kind.String()),
			slog.Any("error", err),
		)
		h.metrics.IncSubscriptionFailed(kind.String())
		return resultForError(err)
	}

	h.metrics.IncSubscriptionCreated()
	span.Logger().Info("new subscriber details have been saved",
		slog.String("subscriber_id", sub.ID.String()),
	)

	return Empty(http.StatusOK)
}

// decode parses and validates the form body. Every failure is a validation error.
func (h *SubscriptionHandler) decode(r *http.Request) (dto.SubscribeRequest, error) {
	const op = "decode subscription form"

	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return dto.SubscribeRequest{}, apperr.Validation(op, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit))
		}
		return dto.SubscribeRequest{}, apperr.Validation(op, err)
	}

	req := dto.SubscribeRequestFromForm(r.PostForm)
	if err := h.validate.Struct(req); err != nil {
		return dto.SubscribeRequest{}, apperr.Validation(op, formatValidationError(err))
	}
	return req, nil
}

// resultForError maps an error to its response. Only validation errors
// expose their message to the client.
func resultForError(err error) Result {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindValidation {
		return errorResult(http.StatusBadRequest, "INVALID_FORM", appErr.Err.Error())
	}
	return errorResult(http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// formatValidationError turns validator output into one readable error.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
