package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"filetrack/internal/config"
	"filetrack/internal/database"
	"filetrack/internal/middleware"
	"filetrack/internal/models"
	"filetrack/internal/repository"
	"filetrack/internal/seed"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-0123456789abcdef0123"

const directoryYAML = `
departments:
  - code: REV
    name: Revenue
    divisions:
      - name: Inward
        users:
          - {name: Asha Rao, email: asha@rev.gov, role: INWARD_DESK}
      - name: Land Records
        users:
          - {name: Meera Iyer, email: meera@rev.gov, role: DIVISION_HEAD}
      - name: Secretariat
        users:
          - {name: Vikram Sen, email: vikram@rev.gov, role: DEPARTMENT_ADMIN}
          - {name: Kiran Das, email: kiran@rev.gov, role: SUPER_ADMIN}
    desks:
      - {name: Land-1, division: Land Records, max_files_per_day: 1}
`

type testEnv struct {
	srv *Server
	app *fiber.App
	dir *seed.Directory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:server_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                        "test",
		Port:                       "0",
		JWTSecret:                  testSecret,
		FeatureFlags:               "allow_recall_terminal=on",
		SLARoutineHours:            72,
		SLAUrgentHours:             24,
		SLAImmediateHours:          4,
		SLAProjectHours:            168,
		SweepIntervalSeconds:       60,
		SweepWorkers:               2,
		TransitionTimeoutSeconds:   5,
		RetryMaxAttempts:           2,
		DeskDefaultCapacity:        20,
		ExtensionRequireSuperAdmin: true,
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	fx, err := seed.LoadDirectory(strings.NewReader(directoryYAML))
	require.NoError(t, err)
	dir, err := fx.Apply(context.Background(), repository.NewStore(db))
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.App(), dir: dir}
}

func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	u, ok := e.dir.Users[email]
	require.True(t, ok, "unknown user %s", email)
	claims := middleware.ActorClaims{
		Role:         string(u.Role),
		DepartmentID: u.DepartmentID,
		DivisionID:   u.DivisionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, email string, body any) (*http.Response, []byte) {
	t.Helper()
	return e.doWithHeaders(t, method, path, email, body, nil)
}

func (e *testEnv) doWithHeaders(t *testing.T, method, path, email string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, email))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (e *testEnv) createFile(t *testing.T, number string) models.File {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/files", "asha@rev.gov", map[string]any{
		"file_number":       number,
		"subject":           "Mutation of land record",
		"priority":          "NORMAL",
		"priority_category": "URGENT",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var f models.File
	require.NoError(t, json.Unmarshal(body, &f))
	return f
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestAPI_RequiresActor(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/files/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CreateForwardAndRead(t *testing.T) {
	env := newTestEnv(t)
	file := env.createFile(t, "REV/2026/001")
	assert.Equal(t, models.FileStatusPending, file.Status)
	require.NotNil(t, file.AllottedTime)
	assert.Equal(t, int64(86400), *file.AllottedTime)

	land := env.dir.Divisions["rev/Land Records"]
	meera := env.dir.Users["meera@rev.gov"]
	deskID := env.dir.Desks[0].ID

	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/forward", file.ID), "asha@rev.gov", map[string]any{
		"target_division_id": land.ID,
		"target_user_id":     meera.ID,
		"desk_id":            deskID,
		"remarks":            "for verification",
		"expected_version":   file.Version,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var forwarded models.File
	require.NoError(t, json.Unmarshal(body, &forwarded))
	assert.Equal(t, meera.ID, forwarded.AssignedToID)
	assert.Equal(t, models.FileStatusInProgress, forwarded.Status)
	require.NotNil(t, forwarded.DeskID)
	assert.Equal(t, deskID, *forwarded.DeskID)

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/history", file.ID), "meera@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.RoutingHistoryEntry
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	assert.Equal(t, models.ActionCreated, history[0].Action)
	assert.Equal(t, models.ActionForwarded, history[1].Action)

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/history?limit=1&offset=1", file.ID), "meera@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionForwarded, history[0].Action)

	at := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/timer?at=%s", file.ID, at), "meera@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var timer struct {
		RemainingSeconds *int64 `json:"remaining_seconds"`
		Percentage       *int   `json:"percentage"`
		OnHold           bool   `json:"on_hold"`
	}
	require.NoError(t, json.Unmarshal(body, &timer))
	require.NotNil(t, timer.RemainingSeconds)
	assert.Less(t, *timer.RemainingSeconds, int64(0))
	require.NotNil(t, timer.Percentage)
	assert.Equal(t, 0, *timer.Percentage)
	assert.False(t, timer.OnHold)
}

func TestAPI_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	file := env.createFile(t, "REV/2026/002")
	land := env.dir.Divisions["rev/Land Records"]
	meera := env.dir.Users["meera@rev.gov"]

	// Fill the only desk so the next placement is over capacity.
	first := env.createFile(t, "REV/2026/003")
	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/desk", first.ID), "asha@rev.gov",
		map[string]any{"desk_id": env.dir.Desks[0].ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	tests := []struct {
		name   string
		method string
		path   string
		email  string
		body   any
		status int
		code   string
	}{
		{"unknown file", http.MethodGet, "/api/files/9999", "asha@rev.gov", nil, http.StatusNotFound, models.CodeNotFound},
		{"bad id", http.MethodPost, "/api/files/abc/forward", "asha@rev.gov", map[string]any{}, http.StatusBadRequest, models.CodeValidation},
		{"missing file number", http.MethodPost, "/api/files", "asha@rev.gov",
			map[string]any{"priority": "NORMAL", "priority_category": "ROUTINE"}, http.StatusBadRequest, models.CodeValidation},
		{"stale version", http.MethodPost, fmt.Sprintf("/api/files/%d/forward", file.ID), "asha@rev.gov",
			map[string]any{"target_division_id": land.ID, "target_user_id": meera.ID, "expected_version": 42},
			http.StatusConflict, models.CodeConflict},
		{"missing version", http.MethodPost, fmt.Sprintf("/api/files/%d/forward", file.ID), "asha@rev.gov",
			map[string]any{"target_division_id": land.ID, "target_user_id": meera.ID},
			http.StatusBadRequest, models.CodeValidation},
		{"desk full", http.MethodPost, fmt.Sprintf("/api/files/%d/forward", file.ID), "asha@rev.gov",
			map[string]any{"target_division_id": land.ID, "target_user_id": meera.ID, "desk_id": env.dir.Desks[0].ID, "expected_version": file.Version},
			http.StatusConflict, models.CodeCapacity},
		{"flags need super admin", http.MethodGet, "/api/feature-flags", "asha@rev.gov", nil, http.StatusForbidden, models.CodeForbidden},
		{"officer cannot create desks", http.MethodPost, "/api/desks", "asha@rev.gov",
			map[string]any{"name": "X", "department_id": file.DepartmentID, "max_files_per_day": 5},
			http.StatusForbidden, models.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.email, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.code, decodeError(t, body).Code)
		})
	}

	// Rejected commands leave the file untouched.
	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), "asha@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var current models.File
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, file.Version, current.Version)
	assert.Equal(t, file.AssignedToID, current.AssignedToID)
}

func TestAPI_HoldAndRelease(t *testing.T) {
	env := newTestEnv(t)
	file := env.createFile(t, "REV/2026/010")

	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/hold", file.ID), "asha@rev.gov",
		map[string]any{"reason": "awaiting survey report", "expected_version": file.Version})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var held models.File
	require.NoError(t, json.Unmarshal(body, &held))
	assert.True(t, held.IsOnHold)
	assert.Equal(t, models.FileStatusOnHold, held.Status)

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d", file.ID), "asha@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	assert.Equal(t, strconv.Quote(strconv.FormatInt(held.Version, 10)), etag)

	release := fmt.Sprintf("/api/files/%d/release", file.ID)
	resp, body = env.do(t, http.MethodPost, release, "asha@rev.gov", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = env.doWithHeaders(t, http.MethodPost, release, "asha@rev.gov", nil, map[string]string{"If-Match": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = env.doWithHeaders(t, http.MethodPost, release, "asha@rev.gov", nil, map[string]string{"If-Match": `"1"`})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = env.doWithHeaders(t, http.MethodPost, release, "asha@rev.gov", nil, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var released models.File
	require.NoError(t, json.Unmarshal(body, &released))
	assert.False(t, released.IsOnHold)
	assert.Equal(t, models.FileStatusPending, released.Status)
}

func TestAPI_Desks(t *testing.T) {
	env := newTestEnv(t)
	rev := env.dir.Departments["rev"]

	resp, body := env.do(t, http.MethodPost, "/api/desks", "vikram@rev.gov", map[string]any{
		"name":              "Pool-1",
		"department_id":     rev.ID,
		"max_files_per_day": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var desk models.Desk
	require.NoError(t, json.Unmarshal(body, &desk))

	resp, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/desks?department_id=%d", rev.ID), "vikram@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stats []models.DeskStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Len(t, stats, 2)

	resp, body = env.do(t, http.MethodGet, "/api/desks?division_id=zero", "vikram@rev.gov", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodPost, "/api/desks/auto", "vikram@rev.gov", map[string]any{"department_id": rev.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var auto struct {
		Desk    models.Desk `json:"desk"`
		Created bool        `json:"created"`
	}
	require.NoError(t, json.Unmarshal(body, &auto))
	assert.False(t, auto.Created)

	resp, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/desks/%d/deactivate", desk.ID), "vikram@rev.gov", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
}

func TestAPI_FeatureFlags(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/feature-flags", "kiran@rev.gov", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var flags struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	require.NoError(t, json.Unmarshal(body, &flags))
	assert.Equal(t, "on", flags.Raw["allow_recall_terminal"])
	assert.True(t, flags.Evaluated["allow_recall_terminal"])
}
