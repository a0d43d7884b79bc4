package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/laftscreen/internal/cache"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/export"
	"github.com/opensource-finance/laftscreen/internal/filter"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/report"
	"github.com/opensource-finance/laftscreen/internal/rules"
	"github.com/opensource-finance/laftscreen/internal/screening"
	"github.com/opensource-finance/laftscreen/internal/tadp"
	"github.com/opensource-finance/laftscreen/internal/worker"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Config holds the settings the handlers need.
type Config struct {
	Server domain.ServerConfig
	Ingest ingest.Options

	// AsOf pins the evaluation date; zero means the day of the request.
	AsOf time.Time
}

// Deps are the components the handlers call into. Cache and Bus are
// optional.
type Deps struct {
	Screener *screening.Screener
	Engine   *rules.Engine
	Store    *cache.ScreeningStore
	Cache    domain.Cache
	Bus      domain.EventBus
	Version  string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	cfg      Config
	screener *screening.Screener
	engine   *rules.Engine
	store    *cache.ScreeningStore
	cache    domain.Cache
	bus      domain.EventBus
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config, deps Deps) *Handler {
	return &Handler{
		cfg:      cfg,
		screener: deps.Screener,
		engine:   deps.Engine,
		store:    deps.Store,
		cache:    deps.Cache,
		bus:      deps.Bus,
		version:  deps.Version,
	}
}

// Health handles GET /health requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready handles GET /ready requests.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules handles GET /rules requests.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":          loaded,
		"count":          len(loaded),
		"alertThreshold": tadp.AlertThreshold,
	})
}

// CombinationInfo describes one pairwise combination column.
type CombinationInfo struct {
	Key string        `json:"key"`
	A   domain.RuleID `json:"a"`
	B   domain.RuleID `json:"b"`
}

// ListCombinations handles GET /rules/combinations requests.
func (h *Handler) ListCombinations(w http.ResponseWriter, r *http.Request) {
	pairs := rules.Pairs()
	out := make([]CombinationInfo, len(pairs))
	for i, p := range pairs {
		out[i] = CombinationInfo{Key: p.Key(), A: p.A, B: p.B}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"combinations": out,
		"count":        len(out),
	})
}

// CreateScreening handles POST /screenings requests. The file is sent as
// the multipart field "file" or as the raw request body, in which case the
// format comes from the "filename" query parameter or the Content-Type.
func (h *Handler) CreateScreening(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cfg.Server.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.Server.MaxUploadMB)<<20)
	}

	q := r.URL.Query()
	asOf := h.cfg.AsOf
	if v := q.Get("as_of"); v != "" {
		d, err := filter.ParseDate(v)
		if err != nil {
			writeError(w, err)
			return
		}
		asOf = d
	}

	opts := h.cfg.Ingest
	if v := q.Get("sheet"); v != "" {
		opts.Sheet = v
	}
	if v := q.Get("delimiter"); v != "" {
		opts.Delimiter = []rune(v)[0]
	}

	body, name, err := uploadedFile(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	format, err := ingest.DetectFormat(name)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := ingest.Load(body, format, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	sc, err := h.screener.Screen(ctx, t, name, asOf)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Save(ctx, sc); err != nil {
		slog.Error("failed to save screening", "screening_id", sc.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store screening",
		})
		return
	}

	ctx = tagScreening(ctx, sc.ID)
	summary := report.Summarize(sc)
	tagOutcome(ctx, summary.Analyzed, summary.Alerts)

	if h.bus != nil {
		requestID, _ := ctx.Value(RequestIDKey).(string)
		worker.PublishResults(ctx, h.bus, h.screener.Processor(), requestID, sc)
	}

	w.Header().Set(ScreeningIDHeader, sc.ID)
	writeJSON(w, http.StatusCreated, summary)
}

// uploadedFile returns the uploaded content and the name used to detect
// its format.
func uploadedFile(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, "", fmt.Errorf("%w: %w", domain.ErrIngestion, err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: multipart field \"file\": %w", domain.ErrIngestion, err)
		}
		name := header.Filename
		if _, err := ingest.DetectFormat(name); err != nil {
			name = header.Header.Get("Content-Type")
		}
		return f, name, nil
	}

	if name := r.URL.Query().Get("filename"); name != "" {
		return r.Body, name, nil
	}
	return r.Body, mediaType, nil
}

// RequestScreening handles POST /screenings/requests: the named file is
// screened asynchronously by a worker.
func (h *Handler) RequestScreening(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus is not configured",
		})
		return
	}

	var req domain.ScreeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "source is required",
		})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	payload, _ := json.Marshal(req)
	if err := h.bus.Publish(r.Context(), domain.TopicScreeningRequested, payload); err != nil {
		slog.Error("failed to publish screening request", "request_id", req.RequestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue screening",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": req.RequestID,
	})
}

// GetScreening handles GET /screenings/{id} requests.
func (h *Handler) GetScreening(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(sc))
}

// DeleteScreening handles DELETE /screenings/{id} requests.
func (h *Handler) DeleteScreening(w http.ResponseWriter, r *http.Request) {
	id := ScreeningID(r.Context())
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordsResponse is one page of the filtered, augmented table.
type RecordsResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Matched int        `json:"matched"`
	Total   int        `json:"total"`
	Offset  int        `json:"offset"`
	Limit   int        `json:"limit"`
}

// ListRecords handles GET /screenings/{id}/records requests.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.load(w, r)
	if !ok {
		return
	}

	positions, err := filtered(sc, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	offset, limit, err := page(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	start, end := len(positions), len(positions)
	if offset < start {
		start = offset
		if limit < end-offset {
			end = offset + limit
		}
	}
	pageRows := positions[start:end]

	t := screening.Augment(sc, pageRows)
	writeJSON(w, http.StatusOK, RecordsResponse{
		Columns: t.Columns,
		Rows:    t.Rows,
		Matched: len(positions),
		Total:   len(sc.Evaluations),
		Offset:  offset,
		Limit:   limit,
	})
}

// ExportScreening handles GET /screenings/{id}/export requests.
func (h *Handler) ExportScreening(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.load(w, r)
	if !ok {
		return
	}

	positions, err := filtered(sc, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.DefaultFileName,
	}))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, screening.Augment(sc, positions)); err != nil {
		slog.Error("failed to write export", "screening_id", sc.ID, "error", err)
	}
}

// GetDistribution handles GET /screenings/{id}/distribution?field=...
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.load(w, r)
	if !ok {
		return
	}

	field := r.URL.Query().Get("field")
	if field == "" {
		field = report.FieldAtypical
	}
	buckets, err := report.Distribution(sc, field)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"field":   field,
		"buckets": buckets,
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*domain.Screening, bool) {
	sc, err := h.store.Load(r.Context(), ScreeningID(r.Context()))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sc, true
}

func filtered(sc *domain.Screening, q url.Values) ([]int, error) {
	c, err := criteriaFromQuery(q)
	if err != nil {
		return nil, err
	}
	return filter.Apply(sc, c)
}

// criteriaFromQuery reads the filter parameters. List parameters may be
// repeated or comma separated.
func criteriaFromQuery(q url.Values) (filter.Criteria, error) {
	var (
		c   filter.Criteria
		err error
	)

	if c.Combinations, err = filter.ParseCombinations(list(q, "combination")); err != nil {
		return c, err
	}
	if c.Mode, err = filter.ParseMode(q.Get("mode")); err != nil {
		return c, err
	}
	c.Cities = list(q, "city")
	c.Channels = list(q, "channel")
	c.Segments = list(q, "segment")
	if c.OnboardedFrom, err = filter.ParseDate(q.Get("onboarded_from")); err != nil {
		return c, err
	}
	if c.OnboardedTo, err = filter.ParseDate(q.Get("onboarded_to")); err != nil {
		return c, err
	}
	if v := q.Get("alerts_only"); v != "" {
		if c.AlertsOnly, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("%w: alerts_only must be a boolean, got %q", domain.ErrInvalidFilter, v)
		}
	}
	return c, nil
}

func list(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func page(q url.Values) (offset, limit int, err error) {
	limit = defaultPageSize
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must be a non-negative integer", domain.ErrInvalidFilter)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidFilter)
		}
	}
	return offset, min(limit, maxPageSize), nil
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrIngestion), errors.Is(err, domain.ErrInvalidFilter):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
