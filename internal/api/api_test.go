package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/shiftops/internal/photos"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
	"github.com/sadopc/shiftops/internal/verify"
)

type prefixDecoder struct{}

func (prefixDecoder) Decode(data []byte) string {
	if bytes.HasPrefix(data, []byte("qr:")) {
		return string(data[3:])
	}
	return ""
}

type testServer struct {
	app   *fiber.App
	store *store.Store
	alice int64
	bob   int64
	admin int64
	loc   *store.Location
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ph, err := photos.NewFS(t.TempDir(), "http://shop.local", 0)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	gate := roster.NewGate(s, time.UTC, nil)
	gate.SetClock(clock)
	svc := tasks.New(tasks.Options{
		Store:    s,
		Roster:   gate,
		Shifts:   gate,
		Verified: verify.NewMemoryStore(time.Hour),
		Photos:   ph,
		QR:       prefixDecoder{},
		Location: time.UTC,
	})
	svc.SetClock(clock)

	ts := &testServer{app: NewServer(svc, gate, s, ph, nil).App(), store: s}
	ts.loc, err = s.CreateLocation(ctx, "Lobby", "ABC123")
	require.NoError(t, err)
	hour := 10
	_, err = s.CreateDefinition(ctx, ts.loc.ID, "Wipe counters", &hour, nil)
	require.NoError(t, err)

	for code, dst := range map[string]*int64{"alice": &ts.alice, "bob": &ts.bob} {
		st, err := s.CreateStaff(ctx, code, code, store.RoleStaff)
		require.NoError(t, err)
		*dst = st.ID
	}
	adm, err := s.CreateStaff(ctx, "boss", "Boss", store.RoleAdmin)
	require.NoError(t, err)
	ts.admin = adm.ID
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, staffID int64, body io.Reader, contentType string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if staffID > 0 {
		req.Header.Set(StaffHeader, strconv.FormatInt(staffID, 10))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if bytes.HasPrefix(raw, []byte("{")) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (ts *testServer) post(t *testing.T, path string, staffID int64) (*http.Response, map[string]any) {
	return ts.do(t, http.MethodPost, path, staffID, nil, "")
}

func (ts *testServer) upload(t *testing.T, path string, staffID int64, image []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "capture.jpg")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return ts.do(t, http.MethodPost, path, staffID, &buf, w.FormDataContentType())
}

func (ts *testServer) instanceID(t *testing.T) int64 {
	t.Helper()
	resp, body := ts.do(t, http.MethodGet, "/api/instances?date=2024-06-01", ts.alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["instances"].([]any)
	require.Len(t, list, 1)
	return int64(list[0].(map[string]any)["id"].(float64))
}

func TestIdentifyRequired(t *testing.T) {
	ts := setupServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/instances", 0, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
	req.Header.Set(StaffHeader, "abc")
	r, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/instances", 9999, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListInstances(t *testing.T) {
	ts := setupServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/instances?date=2024-06-01", ts.alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-06-01", body["work_date"])
	inst := body["instances"].([]any)[0].(map[string]any)
	assert.Equal(t, "pending", inst["status"])
	assert.Equal(t, "Lobby", inst["location_name"])
	assert.NotContains(t, inst, "claim_token")

	resp, _ = ts.do(t, http.MethodGet, "/api/instances?date=June", ts.alice, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaimFlowOverHTTP(t *testing.T) {
	ts := setupServer(t)
	id := ts.instanceID(t)
	base := fmt.Sprintf("/api/instances/%d", id)

	resp, body := ts.post(t, base+"/claim", ts.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ineligible", body["outcome"])

	for _, staffID := range []int64{ts.alice, ts.bob} {
		resp, _ = ts.post(t, "/api/timecard/clock-in", staffID)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body = ts.post(t, base+"/claim", ts.alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["outcome"])
	assert.Equal(t, "in_progress", body["instance"].(map[string]any)["status"])

	resp, body = ts.post(t, base+"/claim", ts.bob)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_taken", body["outcome"])

	resp, body = ts.upload(t, base+"/complete", ts.alice, []byte("photo"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "not_verified", body["outcome"])

	resp, body = ts.upload(t, base+"/verify", ts.alice, []byte("qr:WRONG"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "mismatch", body["outcome"])

	resp, _ = ts.upload(t, base+"/verify", ts.alice, []byte("qr:ABC123"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.upload(t, base+"/complete", ts.alice, []byte("photo"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inst := body["instance"].(map[string]any)
	assert.Equal(t, "completed", inst["status"])
	photoURL, _ := inst["photo_url"].(string)
	assert.Regexp(t, fmt.Sprintf(`^http://shop\.local/photos/%d-[0-9a-f-]{36}\.jpg$`, id), photoURL)

	resp, _ = ts.do(t, http.MethodGet, strings.TrimPrefix(photoURL, "http://shop.local"), 0, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/photos/404.jpg", 0, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImageFieldRequired(t *testing.T) {
	ts := setupServer(t)
	id := ts.instanceID(t)

	resp, _ := ts.post(t, fmt.Sprintf("/api/instances/%d/verify", id), ts.alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/instances/abc/claim", ts.alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := ts.post(t, "/api/instances/999/claim", ts.alice)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["outcome"])
}

func TestTimecardRules(t *testing.T) {
	ts := setupServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/timecard", ts.alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "off_duty", body["state"])

	resp, _ = ts.post(t, "/api/timecard/clock-out", ts.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = ts.post(t, "/api/timecard/clock-in", ts.alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.post(t, "/api/timecard/break-start", ts.alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.post(t, "/api/timecard/clock-out", ts.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, roster.ErrOnBreak.Error(), body["error"])

	resp, body = ts.do(t, http.MethodGet, "/api/timecard", ts.alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "on_break", body["state"])

	resp, _ = ts.post(t, "/api/timecard/break-end", ts.alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.post(t, "/api/timecard/clock-out", ts.alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/timecard/history", ts.alice, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["timecards"], 1)
}

func TestAdminRoutes(t *testing.T) {
	ts := setupServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/admin/overview?date=2024-06-01", ts.alice, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/admin/overview?date=2024-06-01", ts.admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["outstanding"])

	resp, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/api/admin/locations/%d/label?size=128", ts.loc.ID), ts.admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = ts.do(t, http.MethodGet, "/api/admin/locations/999/label", ts.admin, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := map[tasks.Outcome]int{
		tasks.OutcomeOK:             http.StatusOK,
		tasks.OutcomeAlreadyTaken:   http.StatusConflict,
		tasks.OutcomeBusy:           http.StatusUnprocessableEntity,
		tasks.OutcomeMismatch:       http.StatusBadRequest,
		tasks.OutcomeNotVerified:    http.StatusUnprocessableEntity,
		tasks.OutcomeNotClaimant:    http.StatusUnprocessableEntity,
		tasks.OutcomeNotInterrupted: http.StatusUnprocessableEntity,
		tasks.OutcomeIneligible:     http.StatusUnprocessableEntity,
		tasks.OutcomeNotFound:       http.StatusNotFound,
	}
	for outcome, want := range cases {
		assert.Equal(t, want, statusFor(outcome), string(outcome))
	}
}
