package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/strata/internal/activity"
	"github.com/matthewbaird/strata/internal/types"
	"github.com/matthewbaird/strata/internal/validate"
)

// ActivityHandler serves the per-entity activity feeds: tickets and document
// uploads per unit, RSVPs per event and resident, levy quotes per calculation.
type ActivityHandler struct {
	store activity.Store
	log   *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store, logger *slog.Logger) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{store: store, log: logger}
}

type feedPeriod struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

type feedResponse struct {
	Activities []types.ActivityEntry `json:"activities"`
	NextCursor string                `json:"next_cursor,omitempty"`
	TotalCount int                   `json:"total_count"`
	Period     feedPeriod            `json:"period"`
}

// HandleGetEntityActivity returns the newest-first feed for one entity.
// GET /v1/activity/{entity_type}/{entity_id}
func (h *ActivityHandler) HandleGetEntityActivity(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "entity_type")
	id := chi.URLParam(r, "entity_id")
	if err := activity.CheckEntityType(kind); err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	opts, err := feedOptions(r.URL.Query())
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	entries, next, total, err := h.store.QueryByEntity(r.Context(), kind, id, opts)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Activities: entries,
		NextCursor: next,
		TotalCount: total,
		Period:     feedPeriod{Since: *opts.Since, Until: *opts.Until},
	})
}

// feedOptions reads since, until, categories, min_weight, limit and cursor.
// Anything present but unparseable is a validation error.
func feedOptions(q url.Values) (activity.QueryOptions, error) {
	opts := activity.DefaultQueryOptions()
	var err error
	if opts.Since, err = timeParam(q, "since", opts.Since); err != nil {
		return opts, err
	}
	if opts.Until, err = timeParam(q, "until", opts.Until); err != nil {
		return opts, err
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = splitList(cats)
	}
	if mw := q.Get("min_weight"); mw != "" {
		opts.MinWeight = strings.ToLower(strings.TrimSpace(mw))
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return opts, validate.Invalid("limit", "must be an integer between 1 and %d, got %q", activity.MaxLimit, l)
		}
		opts.Limit = n
	}
	opts.Cursor = q.Get("cursor")
	return opts, opts.Validate()
}

func timeParam(q url.Values, name string, fallback *time.Time) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, validate.Invalid(name, "must be an RFC 3339 timestamp, got %q", v)
	}
	return &t, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HandleSearchActivity searches activity summaries.
// POST /v1/activity/search
func (h *ActivityHandler) HandleSearchActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string   `json:"query"`
		EntityType string   `json:"entity_type,omitempty"`
		Since      string   `json:"since,omitempty"`
		Categories []string `json:"categories,omitempty"`
		Limit      int      `json:"limit,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		domainErrorToHTTP(w, h.log, validate.Invalid("query", "required field missing"))
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.EntityType = req.EntityType
	opts.Categories = req.Categories
	if req.Limit != 0 {
		opts.Limit = req.Limit
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			domainErrorToHTTP(w, h.log, validate.Invalid("since", "must be an RFC 3339 timestamp, got %q", req.Since))
			return
		}
		opts.Since = &since
	}
	if err := opts.Validate(); err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	entries, total, err := h.store.Search(r.Context(), req.Query, opts)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}{entries, total})
}
