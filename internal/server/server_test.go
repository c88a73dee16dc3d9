package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/strata/internal/document"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newApp(t *testing.T) (*App, *document.MemorySink) {
	t.Helper()
	sink := document.NewMemorySink()
	app, err := New(Config{
		Logger: slog.New(slog.DiscardHandler),
		Sink:   sink,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return app, sink
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	app, _ := newApp(t)
	rec, body := do(t, app.Router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLevy(t *testing.T) {
	app, _ := newApp(t)

	rec, body := do(t, app.Router, http.MethodPost, "/v1/levy",
		`{"unit_size":75,"unit_type":"2-Bedroom","floor":8,"has_balcony":true,"has_parking_space":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 568.75, body["monthly_levy"])
	assert.Equal(t, 1706.25, body["quarterly_levy"])
	assert.Equal(t, 6825.0, body["annual_levy"])

	id := body["calculation_id"].(string)
	rec, feed := do(t, app.Router, http.MethodGet, "/v1/activity/calculation/"+id+"?since=2020-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, feed["total_count"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/levy", `{"unit_type":"studio"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "unit_size, floor", body["field"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/levy", `{"unit_size":1e308,"unit_type":"penthouse","floor":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "unit_size", body["field"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/levy", `{"unit_size":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", body["code"])

	rec, body = do(t, app.Router, http.MethodGet, "/v1/levy", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/levy", body["endpoint"])
}

func TestMaintenance(t *testing.T) {
	app, _ := newApp(t)

	rec, body := do(t, app.Router, http.MethodPost, "/v1/maintenance/requests", `{
		"request_type":"plumbing","urgency":"normal","description":"major water leak under sink",
		"unit_number":"15B","contact_name":"Jane Citizen","contact_phone":"0412 345 678"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "emergency", body["urgency"])
	assert.Equal(t, true, body["auto_escalated"])

	rec, feed := do(t, app.Router, http.MethodGet, "/v1/activity/unit/15B?since=2020-01-01T00:00:00Z&min_weight=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1.0, feed["total_count"])
	entry := feed["activities"].([]any)[0].(map[string]any)
	assert.Equal(t, "maintenance_ticket_issued", entry["event_type"])
	assert.Equal(t, "critical", entry["weight"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/maintenance/requests", `{"request_type":"gardening","urgency":"low",
		"description":"hedge","unit_number":"1","contact_name":"A","contact_phone":"0412345678"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request_type", body["field"])
	assert.Contains(t, body["accepted"], "plumbing")

	rec, body = do(t, app.Router, http.MethodGet, "/v1/maintenance/requests?type=pool", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	rec, body = do(t, app.Router, http.MethodGet, "/v1/maintenance/requests?contractors=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["contractors"], 7)

	rec, body = do(t, app.Router, http.MethodGet, "/v1/maintenance/requests", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["available_request_types"], 7)
}

func rsvpBody(eventID, resident string, attendees int) string {
	b, _ := json.Marshal(map[string]any{
		"event_id": eventID, "resident_id": resident, "resident_name": "Resident " + resident,
		"email": "r@example.com", "attendee_count": attendees,
	})
	return string(b)
}

func TestRSVP(t *testing.T) {
	app, _ := newApp(t)

	rec, body := do(t, app.Router, http.MethodPost, "/v1/events/rsvp", rsvpBody("BBQ-2025-06", "12A", 36))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "waitlisted", body["status"])
	assert.Equal(t, 1.0, body["queue_position"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/events/rsvp", rsvpBody("BBQ-2025-06", "12B", 35))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", body["status"])
	assert.Nil(t, body["queue_position"])

	rec, body = do(t, app.Router, http.MethodGet, "/v1/events?event_id=BBQ-2025-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["available_spots"])
	ev := body["event"].(map[string]any)
	assert.Equal(t, 80.0, ev["current_rsvps"])
	assert.Equal(t, 1.0, ev["waitlisted"])

	rec, body = do(t, app.Router, http.MethodPost, "/v1/events/rsvp", rsvpBody("NOPE", "1", 1))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["available"], "AGM-2025-03")

	rec, _ = do(t, app.Router, http.MethodGet, "/v1/events?event_id=NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, app.Router, http.MethodGet, "/v1/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["events"], 3)

	rec, feed := do(t, app.Router, http.MethodGet, "/v1/activity/resident/12A?since=2020-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, feed["total_count"])
}

func TestRSVP_ConcurrentRequestsNeverOversell(t *testing.T) {
	app, _ := newApp(t)
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	var (
		mu        sync.Mutex
		confirmed int
		wg        sync.WaitGroup
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/v1/events/rsvp", "application/json",
				strings.NewReader(rsvpBody("COMM-2025-07", "r"+string(rune('A'+i%26)), 1)))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			var out map[string]any
			if assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out)) && out["status"] == "confirmed" {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	ev, err := app.Registry.Get("COMM-2025-07")
	require.NoError(t, err)
	assert.Equal(t, 10, confirmed)
	assert.Equal(t, 15, ev.CurrentRSVPs)
	assert.Equal(t, 50, ev.Waitlisted)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="document"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocuments(t *testing.T) {
	app, sink := newApp(t)
	fields := map[string]string{"pet_name": "Biscuit", "owner_name": "Jane", "unit_number": "15B"}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, multipartUpload(t, fields, "vax.pdf", "application/pdf", []byte("%PDF-1.4 test")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["success"])
	assert.True(t, strings.HasPrefix(out["submission_id"].(string), "PET-"))
	assert.Equal(t, 1, sink.Len())

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, multipartUpload(t, fields, "cat.gif", "image/gif", []byte("GIF89a")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, multipartUpload(t, map[string]string{"pet_name": "Rex"}, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner_name, unit_number")

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, multipartUpload(t, fields, "big.pdf", "application/pdf", make([]byte, document.MaxSize+1)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	recGet, body := do(t, app.Router, http.MethodGet, "/v1/documents", "")
	assert.Equal(t, http.StatusMethodNotAllowed, recGet.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body["code"])
	assert.Equal(t, 1, sink.Len())
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newApp(t)
	do(t, app.Router, http.MethodGet, "/healthz", "")

	rec, _ := do(t, app.Router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `strata_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
	assert.Contains(t, rec.Body.String(), `strata_rsvp_occupancy_ratio{event_id="AGM-2025-03"} 0.46`)
	assert.Contains(t, rec.Body.String(), "strata_eventbus_dropped_total 0")
}

func TestServe_GracefulShutdown(t *testing.T) {
	app, _ := newApp(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Post(url+"/v1/events/rsvp", "application/json", strings.NewReader(rsvpBody("AGM-2025-03", "7C", 2)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, 1.0, scrape(t, app, `strata_rsvp_requests_total{event_id="AGM-2025-03",status="confirmed"}`))
}

// scrape reads one sample from the metrics endpoint.
func scrape(t *testing.T, app *App, series string) float64 {
	t.Helper()
	rec, _ := do(t, app.Router, http.MethodGet, "/metrics", "")
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, series+" ") {
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, series+" "), 64)
			require.NoError(t, err)
			return v
		}
	}
	t.Fatalf("series %s not found", series)
	return 0
}
