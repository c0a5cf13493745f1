package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	mock_kafka "gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/kafka/mocks"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/packages"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/upload"
)

type testApp struct {
	handler http.Handler
	store   *storage.MemoryStorage
}

func newTestApp(t *testing.T, audit *AuditManager) testApp {
	t.Helper()
	publicDir := t.TempDir()
	images, err := upload.NewDiskStore(filepath.Join(publicDir, "uploads"), "/uploads")
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	service := packages.NewService(store, images, zap.NewNop())
	srv := New(service, audit, zap.NewNop(), Options{PublicDir: publicDir})
	return testApp{handler: srv.Handler(), store: store}
}

func (a testApp) do(t *testing.T, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a testApp) create(t *testing.T, body string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/packages", "application/json", strings.NewReader(body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	}
	decodeJSON(t, rr.Body, &resp)
	assert.Equal(t, "Package created successfully", resp.Message)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

const box1 = `{"packageName":"Box1","description":"Books","senderName":"Ann","recipientName":"Bob","packageStatus":"Pending"}`

func TestPackageLifecycle(t *testing.T) {
	app := newTestApp(t, nil)

	id := app.create(t, box1)

	rr := app.do(t, http.MethodGet, "/api/packages", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []storage.Package
	decodeJSON(t, rr.Body, &list)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "Box1", list[0].PackageName)
	assert.Nil(t, list[0].Image)

	rr = app.do(t, http.MethodPut, "/api/packages/"+id, "application/json",
		strings.NewReader(`{"packageStatus":"In Transit"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	var updated struct {
		Message string          `json:"message"`
		Package storage.Package `json:"package"`
	}
	decodeJSON(t, rr.Body, &updated)
	assert.Equal(t, "Package updated successfully", updated.Message)
	assert.Equal(t, "In Transit", updated.Package.PackageStatus)
	assert.Equal(t, "Box1", updated.Package.PackageName)
	assert.Nil(t, updated.Package.Image)

	rr = app.do(t, http.MethodGet, "/api/packages/"+id, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var fetched storage.Package
	decodeJSON(t, rr.Body, &fetched)
	assert.Equal(t, updated.Package, fetched)

	stored, err := app.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "In Transit", stored[0].PackageStatus)
}

func TestUnknownPackage(t *testing.T) {
	app := newTestApp(t, nil)
	app.create(t, box1)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPost} {
		rr := app.do(t, method, "/api/packages/does-not-exist", "application/json", strings.NewReader(`{"packageStatus":"x"}`))
		assert.Equal(t, http.StatusNotFound, rr.Code, method)
		assert.JSONEq(t, `{"message":"Package not found."}`, rr.Body.String(), method)
	}

	stored, err := app.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Pending", stored[0].PackageStatus)
}

func TestCreateMissingFieldsLeavesStoreUntouched(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodPost, "/api/packages", "application/json",
		strings.NewReader(`{"packageName":"Box1","description":"Books","senderName":"Ann"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"Required fields are missing.","fields":["recipientName"]}`, rr.Body.String())

	stored, err := app.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestImageUploadIsServed(t *testing.T) {
	app := newTestApp(t, nil)

	body, contentType := multipartBody(t, map[string]string{
		"packageName":   "Box1",
		"description":   "Books",
		"senderName":    "Ann",
		"recipientName": "Bob",
	}, "photo.png", "png-bytes")
	rr := app.do(t, http.MethodPost, "/api/packages", contentType, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rr.Body, &created)

	rr = app.do(t, http.MethodGet, "/api/packages/"+created.ID, "", nil)
	var pkg storage.Package
	decodeJSON(t, rr.Body, &pkg)
	require.NotNil(t, pkg.Image)
	assert.True(t, strings.HasPrefix(*pkg.Image, "/uploads/"))
	assert.True(t, strings.HasSuffix(*pkg.Image, "-photo.png"))

	rr = app.do(t, http.MethodGet, *pkg.Image, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png-bytes", rr.Body.String())

	// an edit without a file keeps the photo
	body, contentType = multipartBody(t, map[string]string{"packageStatus": "In Transit"}, "", "")
	rr = app.do(t, http.MethodPost, "/api/packages/"+created.ID, contentType, body)
	require.Equal(t, http.StatusOK, rr.Code)
	var updated struct {
		Package storage.Package `json:"package"`
	}
	decodeJSON(t, rr.Body, &updated)
	assert.Equal(t, pkg.Image, updated.Package.Image)
}

func TestViews(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Express Shipping Team</h1>")
	assert.Contains(t, rr.Body.String(), "No packages available.")

	id := app.create(t, `{"packageName":"<Box1>","description":"Books","senderName":"Ann","recipientName":"Bob","packageStatus":"Pending"}`)

	rr = app.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<h2>&lt;Box1&gt;</h2>")
	assert.Contains(t, rr.Body.String(), "<strong>Status:</strong> Pending")
	assert.Contains(t, rr.Body.String(), "/edit/"+id)

	rr = app.do(t, http.MethodGet, "/edit/"+id, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/api/packages/`+id+`"`)
	assert.Contains(t, rr.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, rr.Body.String(), `name="packageStatus" value="Pending"`)

	rr = app.do(t, http.MethodGet, "/edit/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Package not found.")
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	app.create(t, box1)

	rr = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "parceltrack_packages_created_total")
	assert.Contains(t, rr.Body.String(), "parceltrack_http_request_duration_seconds")
}

func TestAuditTrail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		mu      sync.Mutex
		entries []AuditLogEntry
		keys    []string
	)
	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().
		SendMessage(gomock.Any(), "package_events", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, key, value []byte) error {
			var entry AuditLogEntry
			require.NoError(t, json.Unmarshal(value, &entry))
			mu.Lock()
			defer mu.Unlock()
			entries = append(entries, entry)
			keys = append(keys, string(key))
			return nil
		}).
		Times(3)

	audit := NewAuditManager(producer, "package_events", zap.NewNop(), 1, 10, time.Hour)
	audit.Start(context.Background())
	app := newTestApp(t, audit)

	id := app.create(t, box1)
	rr := app.do(t, http.MethodPut, "/api/packages/"+id, "application/json", strings.NewReader(`{"packageStatus":"In Transit"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = app.do(t, http.MethodGet, "/api/packages/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// views are not audited
	app.do(t, http.MethodGet, "/", "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	audit.Shutdown(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, entries, 3)

	assert.Equal(t, "handleCreatePackage", entries[0].Handler)
	assert.Equal(t, http.StatusCreated, entries[0].StatusCode)
	assert.Equal(t, id, entries[0].PackageID)
	assert.Equal(t, box1, entries[0].Request)

	assert.Equal(t, "handleUpdatePackage", entries[1].Handler)
	assert.Equal(t, id, entries[1].PackageID)
	assert.Equal(t, "Pending", entries[1].OldStatus)
	assert.Equal(t, "In Transit", entries[1].NewStatus)
	assert.Equal(t, []string{id, id, "missing"}, keys)

	assert.Equal(t, "handleGetPackage", entries[2].Handler)
	assert.Equal(t, http.StatusNotFound, entries[2].StatusCode)
	assert.Equal(t, 0, audit.Pending())
}
