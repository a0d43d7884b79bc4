package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/bus"
	"github.com/opensource-finance/laftscreen/internal/cache"
	"github.com/opensource-finance/laftscreen/internal/domain"
	"github.com/opensource-finance/laftscreen/internal/ingest"
	"github.com/opensource-finance/laftscreen/internal/rules"
	"github.com/opensource-finance/laftscreen/internal/screening"
	"github.com/opensource-finance/laftscreen/internal/tadp"
)

// createTestServer creates a server backed by an in-memory store.
func createTestServer(t *testing.T, eventBus domain.EventBus) *Server {
	t.Helper()
	cfg := Config{
		Server: domain.ServerConfig{
			Host:           "localhost",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   30,
			RequestTimeout: 30,
			MaxUploadMB:    1,
		},
		AsOf: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	schema, err := ingest.NewSchema(nil)
	require.NoError(t, err)
	engine, err := rules.NewDefaultEngine(2)
	require.NoError(t, err)
	lru := cache.NewLRUCache(16)

	return NewServer(cfg, Deps{
		Screener: screening.NewScreener(schema, engine, tadp.NewProcessor(engine.GetLoadedRules()), nil),
		Engine:   engine,
		Store:    cache.NewScreeningStore(lru, time.Hour),
		Cache:    lru,
		Bus:      eventBus,
		Version:  "test-v1",
	})
}

func sampleCSV() string {
	var b strings.Builder
	b.WriteString("client_id,transaction_value,pep,payment_channel,city,industry_code,product\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "C%d,%d,No,Efectivo,BOGOTA,1111,Ahorros\n", i%3, 1000+i*10)
	}
	b.WriteString("X1,90000,Si,Cripto,Leticia,8639,CDT\n")
	b.WriteString("X2,n/a,No,Efectivo,BOGOTA,1111,Ahorros\n")
	return b.String()
}

func do(t *testing.T, s *Server, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func upload(t *testing.T, s *Server) domain.Summary {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/screenings?filename=sample.csv", []byte(sampleCSV()), "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var summary domain.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	return summary
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t, nil)

	rr := do(t, server, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "test-v1", resp["version"])
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))

	rr = do(t, server, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRulesEndpoints(t *testing.T) {
	server := createTestServer(t, nil)

	t.Run("Rules", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/rules", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Rules []domain.RuleConfig `json:"rules"`
			Count int                 `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, domain.RuleCount, resp.Count)
		assert.Equal(t, domain.RuleID(1), resp.Rules[0].ID)
	})

	t.Run("Combinations", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/rules/combinations", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Combinations []CombinationInfo `json:"combinations"`
			Count        int               `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, rules.PairCount, resp.Count)
		assert.Equal(t, "combination_1_2", resp.Combinations[0].Key)
		assert.Equal(t, "combination_19_20", resp.Combinations[rules.PairCount-1].Key)
	})
}

func TestCreateScreeningOutOfRangeValue(t *testing.T) {
	server := createTestServer(t, nil)

	csv := "client_id,transaction_value\nA,100\nB,200\nC,1e400\n"
	rr := do(t, server, http.MethodPost, "/screenings?filename=huge.csv", []byte(csv), "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var summary domain.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Analyzed)
	assert.Equal(t, 1, summary.Dropped)
	assert.InDelta(t, 150.0, summary.Baseline.Mean, 1e-9)

	rr = do(t, server, http.MethodGet, "/screenings/"+summary.ID, nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestScreeningRequestTagging(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	server := createTestServer(t, nil)
	rr := do(t, server, http.MethodPost, "/screenings?filename=sample.csv", []byte(sampleCSV()), "")
	require.Equal(t, http.StatusCreated, rr.Code)
	var summary domain.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, summary.ID, rr.Header().Get(ScreeningIDHeader))

	rr = do(t, server, http.MethodGet, "/screenings/"+summary.ID+"/records", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, summary.ID, rr.Header().Get(ScreeningIDHeader))

	access := map[string]map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "http request" {
			access[entry["method"].(string)] = entry
		}
	}

	require.Contains(t, access, http.MethodPost)
	assert.Equal(t, summary.ID, access[http.MethodPost]["screening_id"])
	assert.EqualValues(t, 31, access[http.MethodPost]["analyzed"])

	require.Contains(t, access, http.MethodGet)
	assert.Equal(t, summary.ID, access[http.MethodGet]["screening_id"])
	assert.Equal(t, "/screenings/{id}/records", access[http.MethodGet]["route"])
}

func TestScreeningLifecycle(t *testing.T) {
	server := createTestServer(t, nil)
	summary := upload(t, server)

	require.NotEmpty(t, summary.ID)
	assert.Equal(t, 31, summary.Analyzed)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, "2025-06-30", summary.AsOf)
	require.Positive(t, summary.Alerts)

	base := "/screenings/" + summary.ID

	t.Run("Get", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base, nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var got domain.Summary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, summary.Alerts, got.Alerts)
	})

	t.Run("Records", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base+"/records?limit=5", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp RecordsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 31, resp.Total)
		assert.Equal(t, 31, resp.Matched)
		assert.Len(t, resp.Rows, 5)
		assert.Contains(t, resp.Columns, screening.ColumnAlert)
		assert.Contains(t, resp.Columns, "combination_19_20")
	})

	t.Run("RecordsPaging", func(t *testing.T) {
		cases := map[string]int{
			"offset=29&limit=5":            2,
			"offset=31":                    0,
			"offset=9223372036854775807":   0,
			"offset=30&limit=999999999999": 1,
		}
		for q, want := range cases {
			rr := do(t, server, http.MethodGet, base+"/records?"+q, nil, "")
			require.Equal(t, http.StatusOK, rr.Code, q)
			var resp RecordsResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), q)
			assert.Len(t, resp.Rows, want, q)
			assert.Equal(t, 31, resp.Matched, q)
		}
	})

	t.Run("RecordsFiltered", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base+"/records?alerts_only=true&city=leticia", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp RecordsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Matched)
		assert.Equal(t, "X1", resp.Rows[0][0])
	})

	t.Run("RecordsInvalidFilter", func(t *testing.T) {
		for _, q := range []string{"mode=some", "combination=combination_2_2", "onboarded_from=01/02/2024", "alerts_only=maybe", "limit=0"} {
			rr := do(t, server, http.MethodGet, base+"/records?"+q, nil, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})

	t.Run("Export", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base+"/export", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "resultados_laft.csv")

		lines := strings.Split(strings.TrimSuffix(rr.Body.String(), "\n"), "\n")
		assert.Len(t, lines, 32)
		assert.True(t, strings.HasPrefix(lines[0], "client_id,transaction_value,"))
	})

	t.Run("Distribution", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, base+"/distribution?field=city", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Field   string `json:"field"`
			Buckets []struct {
				Value string `json:"value"`
				Total int    `json:"total"`
			} `json:"buckets"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Buckets, 2)
		assert.Equal(t, "BOGOTA", resp.Buckets[0].Value)
		assert.Equal(t, 30, resp.Buckets[0].Total)

		rr = do(t, server, http.MethodGet, base+"/distribution?field=assets", nil, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		rr := do(t, server, http.MethodDelete, base, nil, "")
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = do(t, server, http.MethodGet, base, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCreateScreeningMultipart(t *testing.T) {
	server := createTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "movimientos.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(sampleCSV()))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rr := do(t, server, http.MethodPost, "/screenings?as_of=2024-01-01", body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var summary domain.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, "movimientos.csv", summary.Source)
	assert.Equal(t, "2024-01-01", summary.AsOf)
}

func TestCreateScreeningErrors(t *testing.T) {
	server := createTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		body   string
		ctype  string
		want   int
	}{
		{"unsupported format", "/screenings?filename=data.pdf", sampleCSV(), "", http.StatusBadRequest},
		{"no format", "/screenings", sampleCSV(), "", http.StatusBadRequest},
		{"missing value column", "/screenings?filename=x.csv", "client_id,city\nA,BOGOTA\n", "", http.StatusBadRequest},
		{"empty file", "/screenings", "", "text/csv", http.StatusBadRequest},
		{"bad as_of", "/screenings?filename=x.csv&as_of=yesterday", sampleCSV(), "", http.StatusBadRequest},
		{"too large", "/screenings?filename=x.csv", "transaction_value\n" + strings.Repeat("1\n", 1<<20), "", http.StatusRequestEntityTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, server, http.MethodPost, tc.target, []byte(tc.body), tc.ctype)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
		})
	}
}

func TestScreeningNotFound(t *testing.T) {
	server := createTestServer(t, nil)
	for _, path := range []string{"/screenings/nope", "/screenings/nope/records", "/screenings/nope/export", "/screenings/nope/distribution"} {
		rr := do(t, server, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestScreeningEvents(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	completed := make(chan domain.ScreeningCompleted, 1)
	_, err := eventBus.Subscribe(context.Background(), domain.TopicScreeningCompleted, func(_ context.Context, msg *domain.Message) error {
		var ev domain.ScreeningCompleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		completed <- ev
		return nil
	})
	require.NoError(t, err)

	server := createTestServer(t, eventBus)
	summary := upload(t, server)

	select {
	case ev := <-completed:
		require.NotNil(t, ev.Summary)
		assert.Equal(t, summary.ID, ev.Summary.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for completion event")
	}
}

func TestRequestScreening(t *testing.T) {
	t.Run("NoBus", func(t *testing.T) {
		server := createTestServer(t, nil)
		rr := do(t, server, http.MethodPost, "/screenings/requests", []byte(`{"source":"a.csv"}`), "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("Queued", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		requests := make(chan domain.ScreeningRequest, 1)
		_, err := eventBus.Subscribe(context.Background(), domain.TopicScreeningRequested, func(_ context.Context, msg *domain.Message) error {
			var req domain.ScreeningRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return err
			}
			requests <- req
			return nil
		})
		require.NoError(t, err)

		server := createTestServer(t, eventBus)

		rr := do(t, server, http.MethodPost, "/screenings/requests", []byte(`{"source":"/data/a.csv"}`), "application/json")
		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp["requestId"])

		select {
		case req := <-requests:
			assert.Equal(t, resp["requestId"], req.RequestID)
			assert.Equal(t, "/data/a.csv", req.Source)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for request")
		}

		rr = do(t, server, http.MethodPost, "/screenings/requests", []byte(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = do(t, server, http.MethodPost, "/screenings/requests", []byte(`nope`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	server := createTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/screenings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
