package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/calendar"
)

type eventService interface {
	Create(ctx context.Context, params application.CreateEventParams) (calendar.Event, error)
	Update(ctx context.Context, params application.UpdateEventParams) (calendar.Event, error)
	Delete(ctx context.Context, principal application.Principal, eventID string) error
	Get(ctx context.Context, principal application.Principal, eventID string) (calendar.Event, error)
	ForDate(ctx context.Context, principal application.Principal, date time.Time) ([]calendar.Event, error)
	Upcoming(ctx context.Context, principal application.Principal, limit int) ([]calendar.Event, error)
	Month(ctx context.Context, principal application.Principal, year int, month time.Month) (calendar.MonthView, error)
}

// EventFeed hands out calendar snapshots as they are published.
type EventFeed interface {
	Subscribe() (<-chan []calendar.Event, func())
}

type EventHandler struct {
	service   eventService
	feed      EventFeed
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewEventHandler builds the event handler. Day and month queries are read in
// loc; a nil loc means UTC.
func NewEventHandler(service eventService, feed EventFeed, loc *time.Location, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{service: service, feed: feed, location: loc, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List answers GET /events. `day` selects one calendar day, `upcoming` the
// next N events; with neither the default upcoming window is returned.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	logger := h.log(r.Context(), "List", "principal_id", principal.AccountID)

	var (
		events []calendar.Event
		err    error
	)
	switch {
	case query.Has("day"):
		day, parseErr := time.ParseInLocation(time.DateOnly, strings.TrimSpace(query.Get("day")), h.location)
		if parseErr != nil {
			logger.ErrorContext(r.Context(), "invalid day query", "error", parseErr, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDay)
			return
		}
		events, err = h.service.ForDate(r.Context(), principal, day)
	default:
		limit := 0
		if raw := strings.TrimSpace(query.Get("upcoming")); raw != "" {
			parsed, parseErr := strconv.Atoi(raw)
			if parseErr != nil || parsed < 0 {
				logger.ErrorContext(r.Context(), "invalid upcoming query", "value", raw, "error_kind", "bad_request")
				h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLimit)
				return
			}
			limit = parsed
		}
		events, err = h.service.Upcoming(r.Context(), principal, limit)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "event listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.AccountID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.AccountID)

	start, end, vErr := req.window()
	if vErr != nil {
		logger.ErrorContext(r.Context(), "invalid event timestamps", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	event, err := h.service.Create(r.Context(), application.CreateEventParams{
		Principal:   principal,
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Start:       deref(start),
		End:         deref(end),
		Location:    deref(req.Location),
		Organizer:   deref(req.Organizer),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.Get(r.Context(), principal, eventID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.AccountID, "event_id", eventID).ErrorContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing event id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.AccountID, "event_id", eventID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.AccountID, "event_id", eventID)

	start, end, vErr := req.window()
	if vErr != nil {
		logger.ErrorContext(r.Context(), "invalid event timestamps", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	event, err := h.service.Update(r.Context(), application.UpdateEventParams{
		Principal:   principal,
		EventID:     eventID,
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		Location:    req.Location,
		Organizer:   req.Organizer,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing event id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.AccountID, "event_id", eventID)
	if err := h.service.Delete(r.Context(), principal, eventID); err != nil {
		logger.ErrorContext(r.Context(), "event delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Month answers GET /calendar/month?month=YYYY-MM. Without a query the current
// month in the handler's location is used.
func (h *EventHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Month", "principal_id", principal.AccountID)

	year, month, _ := time.Now().In(h.location).Date()
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, h.location)
		if err != nil {
			logger.ErrorContext(r.Context(), "invalid month query", "error", err, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMonth)
			return
		}
		year, month = parsed.Year(), parsed.Month()
	}

	view, err := h.service.Month(r.Context(), principal, year, month)
	if err != nil {
		logger.ErrorContext(r.Context(), "month view failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMonthDTO(view))
}

// Stream answers GET /events/stream with one server-sent event per calendar
// snapshot, starting with the current one.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.feed == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Stream", "principal_id", principal.AccountID)

	controller := http.NewResponseController(w)
	snapshots, cancel := h.feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := controller.Flush(); err != nil {
		logger.ErrorContext(r.Context(), "response does not support flushing", "error", err)
		return
	}

	logger.InfoContext(r.Context(), "event stream opened")
	for {
		select {
		case <-r.Context().Done():
			logger.InfoContext(r.Context(), "event stream closed")
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			payload, err := json.Marshal(eventsResponse{Events: toEventDTOs(snapshot)})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				logger.WarnContext(r.Context(), "event stream write failed", "error", err)
				return
			}
			if err := controller.Flush(); err != nil {
				logger.WarnContext(r.Context(), "event stream flush failed", "error", err)
				return
			}
		}
	}
}

type eventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Location    *string `json:"location"`
	Organizer   *string `json:"organizer"`
}

// window parses the optional start and end timestamps.
func (r eventRequest) window() (start, end *time.Time, err error) {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	if r.Start != nil {
		if ts, ok := parseTime(*r.Start); ok {
			start = &ts
		} else {
			vErr.FieldErrors["start"] = "must be an RFC 3339 timestamp"
		}
	}
	if r.End != nil {
		if ts, ok := parseTime(*r.End); ok {
			end = &ts
		} else {
			vErr.FieldErrors["end"] = "must be an RFC 3339 timestamp"
		}
	}
	if vErr.HasErrors() {
		return nil, nil, vErr
	}
	return start, end, nil
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func deref[T any](value *T) T {
	var zero T
	if value == nil {
		return zero
	}
	return *value
}

type eventDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Organizer   string `json:"organizer,omitempty"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type eventsResponse struct {
	Events []eventDTO `json:"events"`
}

func toEventDTO(event calendar.Event) eventDTO {
	return eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Start:       formatTime(event.Start),
		End:         formatTime(event.End),
		Location:    event.Location,
		Organizer:   event.Organizer,
	}
}

func toEventDTOs(events []calendar.Event) []eventDTO {
	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	return dtos
}

type dayDTO struct {
	Day       int    `json:"day"`
	Date      string `json:"date"`
	HasEvents bool   `json:"has_events"`
}

// monthDTO renders the grid row by row; empty cells are null.
type monthDTO struct {
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	FirstWeekday int         `json:"first_weekday"`
	DaysInMonth  int         `json:"days_in_month"`
	Weeks        [][]*dayDTO `json:"weeks"`
}

func toMonthDTO(view calendar.MonthView) monthDTO {
	dto := monthDTO{
		Year:         view.Grid.Year,
		Month:        int(view.Grid.Month),
		FirstWeekday: view.Grid.FirstWeekday,
		DaysInMonth:  view.Grid.Days,
		Weeks:        make([][]*dayDTO, 0, len(view.Cells)),
	}
	for _, row := range view.Cells {
		week := make([]*dayDTO, 0, len(row))
		for _, cell := range row {
			if cell == nil {
				week = append(week, nil)
				continue
			}
			week = append(week, &dayDTO{
				Day:       cell.Day,
				Date:      cell.Date.Format(time.DateOnly),
				HasEvents: cell.HasEvents,
			})
		}
		dto.Weeks = append(dto.Weeks, week)
	}
	return dto
}
