package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/trashcan/internal/testutil"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

type envelope struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
}

func call(t *testing.T, fn http.HandlerFunc, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec, env
}

func newHandlers(prov *testutil.MockProvider) (*Handlers, *bytes.Buffer) {
	var logs bytes.Buffer
	h := New(prov)
	h.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	return h, &logs
}

func TestIndex(t *testing.T) {
	h, _ := newHandlers(testutil.NewMockProvider())
	rec, env := call(t, h.Index, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Trash Can Sensor API", env.Data["message"])
}

func TestRegister(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	rec, env := call(t, h.Register, http.MethodPut, "/register?deviceId=bin-1&totalLevels=4")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, map[string]any{
		"message":      "Registered device.",
		"device_id":    "bin-1",
		"total_levels": float64(4),
	}, env.Data)
	assert.Equal(t, 1, prov.RegisterCalls())
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		message string
	}{
		{"missing device", "/register?totalLevels=4", types.MsgDeviceIDRequired},
		{"empty device", "/register?deviceId=&totalLevels=4", types.MsgDeviceIDRequired},
		{"missing levels", "/register?deviceId=bin-1", types.MsgTotalLevelsInvalid},
		{"non-numeric levels", "/register?deviceId=bin-1&totalLevels=abc", types.MsgTotalLevelsInvalid},
		{"negative levels", "/register?deviceId=bin-1&totalLevels=-4", types.MsgTotalLevelsInvalid},
		{"decimal levels", "/register?deviceId=bin-1&totalLevels=4.0", types.MsgTotalLevelsInvalid},
		{"overflowing levels", "/register?deviceId=bin-1&totalLevels=99999999999999999999999", types.MsgTotalLevelsInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := testutil.NewMockProvider()
			h, logs := newHandlers(prov)

			rec, env := call(t, h.Register, http.MethodPut, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "fail", env.Status)
			assert.Equal(t, map[string]any{"message": tt.message}, env.Data)
			assert.Empty(t, env.Code)
			assert.Equal(t, 0, prov.RegisterCalls())
			assert.NotContains(t, logs.String(), "level=ERROR")
		})
	}
}

func TestRegister_BackendError(t *testing.T) {
	prov := testutil.NewMockProvider()
	prov.RegisterErr = types.NewError(types.CodeRegisterTransaction, types.MsgRegisterTransaction, errors.New("TransactionConflict"))
	h, logs := newHandlers(prov)

	rec, env := call(t, h.Register, http.MethodPut, "/register?deviceId=bin-1&totalLevels=4")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "TSC_8", env.Code)
	assert.Equal(t, types.MsgRegisterTransaction, env.Message)
	assert.NotContains(t, rec.Body.String(), "TransactionConflict")
	assert.Contains(t, logs.String(), "TransactionConflict")
}

func TestRegister_UncodedErrorUsesFallback(t *testing.T) {
	prov := testutil.NewMockProvider()
	prov.RegisterErr = errors.New("boom")
	h, _ := newHandlers(prov)

	_, env := call(t, h.Register, http.MethodPut, "/register?deviceId=bin-1&totalLevels=4")
	assert.Equal(t, "TSC_1", env.Code)
	assert.Equal(t, types.MsgRegister, env.Message)
}

func TestReport(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	rec, env := call(t, h.Report, http.MethodPut, "/report?deviceId=bin-1&fillLevel=0")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"message":    "Reported device status.",
		"device_id":  "bin-1",
		"fill_level": float64(0),
	}, env.Data)
	assert.Equal(t, 1, prov.ReportCalls())
}

func TestReport_EchoesParsedLevel(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	_, env := call(t, h.Report, http.MethodPut, "/report?deviceId=bin-1&fillLevel=007")
	assert.Equal(t, float64(7), env.Data["fill_level"])
}

func TestReport_Validation(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	rec, env := call(t, h.Report, http.MethodPut, "/report?deviceId=bin-1&fillLevel=three")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.MsgFillLevelInvalid, env.Data["message"])

	_, env = call(t, h.Report, http.MethodPut, "/report?fillLevel=3")
	assert.Equal(t, types.MsgDeviceIDRequired, env.Data["message"])
	assert.Equal(t, 0, prov.ReportCalls())
}

func TestReport_BackendError(t *testing.T) {
	prov := testutil.NewMockProvider()
	prov.ReportErr = types.NewError(types.CodeReport, types.MsgReport, errors.New("throttled"))
	h, _ := newHandlers(prov)

	rec, env := call(t, h.Report, http.MethodPut, "/report?deviceId=bin-1&fillLevel=3")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TSC_2", env.Code)
}

func TestListDevices(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	_, env := call(t, h.ListDevices, http.MethodGet, "/devices")
	assert.Equal(t, []any{}, env.Data["devices"])

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	require.NoError(t, prov.Register(ctx, "a", 4))
	require.NoError(t, prov.Report(ctx, "a", 2))

	rec, env := call(t, h.ListDevices, http.MethodGet, "/devices")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{map[string]any{
		"id":           "a",
		"total_levels": float64(4),
		"fill_level":   float64(2),
	}}, env.Data["devices"])
}

func TestListDevices_Errors(t *testing.T) {
	prov := testutil.NewMockProvider()
	prov.ListDevicesErr = types.NewError(types.CodeListDevices, types.MsgListDevices, errors.New("denied"))
	h, _ := newHandlers(prov)

	rec, env := call(t, h.ListDevices, http.MethodGet, "/devices")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TSC_3", env.Code)

	prov = testutil.NewMockProvider()
	prov.SeedCurrent("broken", types.Record{"pk": "report#current", "sk": "not-a-device"})
	h, logs := newHandlers(prov)

	_, env = call(t, h.ListDevices, http.MethodGet, "/devices")
	assert.Equal(t, "TSC_3", env.Code)
	assert.Equal(t, types.MsgListDevices, env.Message)
	assert.Contains(t, logs.String(), "malformed device key")
}

func TestGetDevice(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	require.NoError(t, prov.Register(ctx, "bin-1", 4))
	require.NoError(t, prov.Report(ctx, "bin-1", 1))
	require.NoError(t, prov.Report(ctx, "bin-1", 2))

	rec, env := call(t, h.GetDevice, http.MethodGet, "/device?deviceId=bin-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "bin-1", "total_levels": float64(4)}, env.Data["device"])

	history, ok := env.Data["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, float64(2), history[0].(map[string]any)["fill_level"])
	assert.Equal(t, float64(1), history[1].(map[string]any)["fill_level"])
	assert.Equal(t, "bin-1", history[0].(map[string]any)["id"])
}

func TestGetDevice_MissingDeviceID(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	for _, target := range []string{"/device", "/device?deviceId="} {
		rec, env := call(t, h.GetDevice, http.MethodGet, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.Equal(t, "error", env.Status, target)
		assert.Equal(t, "TCS_4", env.Code, target)
		assert.Equal(t, types.MsgMissingDeviceID, env.Message, target)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	h, _ := newHandlers(testutil.NewMockProvider())

	rec, env := call(t, h.GetDevice, http.MethodGet, "/device?deviceId=ghost")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TSC_6", env.Code)
	assert.Equal(t, types.MsgDeviceNotFound, env.Message)
}

func TestGetDevice_HistoryError(t *testing.T) {
	prov := testutil.NewMockProvider()
	prov.GetDeviceErr = types.NewError(types.CodeDeviceHistory, types.MsgDeviceHistory, errors.New("boom"))
	h, _ := newHandlers(prov)

	_, env := call(t, h.GetDevice, http.MethodGet, "/device?deviceId=bin-1")
	assert.Equal(t, "TSC_7", env.Code)
}

func TestHealth(t *testing.T) {
	prov := testutil.NewMockProvider()
	h, _ := newHandlers(prov)

	rec, env := call(t, h.Health, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", env.Data["storage"])

	prov.PingErr = errors.New("unreachable")
	rec, env = call(t, h.Health, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", env.Data["storage"])
}
