package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buger/jsonparser"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gfxd/gpu-mode-service/gfx"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

type fakeGfx struct {
	mode     models.GpuMode
	action   models.RequiredAction
	err      error
	power    models.PowerState
	vfio     bool
	vfioErr  error
	requests []models.GpuMode
}

func (f *fakeGfx) Mode() models.GpuMode { return f.mode }

func (f *fakeGfx) SetMode(_ context.Context, target models.GpuMode) (models.RequiredAction, error) {
	f.requests = append(f.requests, target)
	return f.action, f.err
}

func (f *fakeGfx) PowerStatus() (models.PowerState, error) { return f.power, nil }

func (f *fakeGfx) Status() models.GfxStatus {
	return models.GfxStatus{Mode: f.mode, SavedMode: f.mode, VfioEnabled: f.vfio}
}

func (f *fakeGfx) SetVfioEnabled(_ context.Context, enabled bool) error {
	if f.vfioErr != nil {
		return f.vfioErr
	}
	f.vfio = enabled
	return nil
}

type fakeHistory struct {
	transitions []models.Transition
	limit       int
}

func (f *fakeHistory) Latest(_ context.Context, limit int) ([]models.Transition, error) {
	f.limit = limit
	if limit < len(f.transitions) {
		return f.transitions[:limit], nil
	}
	return f.transitions, nil
}

type fakeDevices []models.GraphicsDeviceInfo

func (f fakeDevices) Describe() []models.GraphicsDeviceInfo { return f }

func SetupTestRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(deps)
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHandleGetMode(t *testing.T) {
	router := SetupTestRouter(RouterDeps{Gfx: &fakeGfx{mode: models.GpuModeHybrid}})

	w := do(router, http.MethodGet, "/api/v1/gfx/mode", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	mode, err := jsonparser.GetString(w.Body.Bytes(), "mode")
	require.NoError(t, err)
	assert.Equal(t, "hybrid", mode)
}

func TestHandleSetMode(t *testing.T) {
	tests := []struct {
		description  string
		body         []byte
		action       models.RequiredAction
		err          error
		expectedCode int
		expectedAct  string
	}{
		{
			description:  "logout required",
			body:         []byte(`{"mode":"integrated"}`),
			action:       models.ActionLogout,
			expectedCode: http.StatusOK,
			expectedAct:  "logout",
		},
		{
			description:  "mode name in upper case",
			body:         []byte(`{"mode":"VFIO"}`),
			action:       models.ActionNone,
			expectedCode: http.StatusOK,
			expectedAct:  "none",
		},
		{
			description:  "empty body",
			expectedCode: http.StatusBadRequest,
		},
		{
			description:  "missing mode",
			body:         []byte(`{}`),
			expectedCode: http.StatusBadRequest,
		},
		{
			description:  "unknown mode",
			body:         []byte(`{"mode":"turbo"}`),
			expectedCode: http.StatusBadRequest,
		},
		{
			description: "must be integrated first",
			body:        []byte(`{"mode":"vfio"}`),
			action:      models.ActionMustBeIntegratedFirst,
			err: &gfx.RequestError{
				Target: models.GpuModeVfio,
				Action: models.ActionMustBeIntegratedFirst,
				Err:    gfx.ErrMustBeIntegratedFirst,
			},
			expectedCode: http.StatusConflict,
			expectedAct:  "integrated",
		},
		{
			description:  "vfio not enabled",
			body:         []byte(`{"mode":"vfio"}`),
			err:          &gfx.RequestError{Target: models.GpuModeVfio, Action: models.ActionNone, Err: gfx.ErrVfioDisabled},
			expectedCode: http.StatusConflict,
			expectedAct:  "none",
		},
		{
			description:  "saved mode changed while waiting",
			body:         []byte(`{"mode":"compute"}`),
			err:          &gfx.RequestError{Target: models.GpuModeCompute, Action: models.ActionLogout, Err: gfx.ErrModeChanged},
			expectedCode: http.StatusConflict,
			expectedAct:  "logout",
		},
		{
			description:  "driver failure",
			body:         []byte(`{"mode":"compute"}`),
			err:          &gfx.RequestError{Target: models.GpuModeCompute, Action: models.ActionNone, Err: errors.New("modprobe nvidia failed")},
			expectedCode: http.StatusInternalServerError,
			expectedAct:  "none",
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			svc := &fakeGfx{mode: models.GpuModeHybrid, action: tc.action, err: tc.err}
			router := SetupTestRouter(RouterDeps{Gfx: svc})

			w := do(router, http.MethodPost, "/api/v1/gfx/mode", tc.body)
			assert.Equal(t, tc.expectedCode, w.Code, w.Body.String())

			if tc.expectedAct != "" {
				action, err := jsonparser.GetString(w.Body.Bytes(), "required_action")
				require.NoError(t, err)
				assert.Equal(t, tc.expectedAct, action)
			}
		})
	}
}

func TestHandleSetModeParsesTarget(t *testing.T) {
	svc := &fakeGfx{action: models.ActionNone}
	router := SetupTestRouter(RouterDeps{Gfx: svc})

	w := do(router, http.MethodPost, "/api/v1/gfx/mode", []byte(`{"mode":" Compute "}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.GpuMode{models.GpuModeCompute}, svc.requests)

	msg, _ := jsonparser.GetString(w.Body.Bytes(), "message")
	assert.Equal(t, "Mode applied", msg)
}

func TestHandleGetPower(t *testing.T) {
	router := SetupTestRouter(RouterDeps{Gfx: &fakeGfx{power: models.PowerSuspended}})

	w := do(router, http.MethodGet, "/api/v1/gfx/power", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"power":"suspended"}`, w.Body.String())
}

func TestHandleSetVfio(t *testing.T) {
	svc := &fakeGfx{mode: models.GpuModeIntegrated}
	router := SetupTestRouter(RouterDeps{Gfx: svc})

	w := do(router, http.MethodPost, "/api/v1/gfx/vfio", []byte(`{"enabled":true}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.vfio)

	w = do(router, http.MethodGet, "/api/v1/gfx/status", nil)
	enabled, err := jsonparser.GetBoolean(w.Body.Bytes(), "vfio_enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	// false must be accepted, only a missing field is rejected
	w = do(router, http.MethodPost, "/api/v1/gfx/vfio", []byte(`{"enabled":false}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.vfio)

	w = do(router, http.MethodPost, "/api/v1/gfx/vfio", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	pointer, _ := jsonparser.GetString(w.Body.Bytes(), "errors", "[0]", "pointer")
	assert.Equal(t, "#/enabled", pointer)

	svc.vfioErr = errors.New("disk full")
	w = do(router, http.MethodPost, "/api/v1/gfx/vfio", []byte(`{"enabled":true}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleListTransitions(t *testing.T) {
	history := &fakeHistory{transitions: []models.Transition{
		{Target: models.GpuModeIntegrated, Status: models.TransitionCompleted},
		{Target: models.GpuModeHybrid, Status: models.TransitionCancelled},
	}}
	router := SetupTestRouter(RouterDeps{Gfx: &fakeGfx{}, History: history})

	w := do(router, http.MethodGet, "/api/v1/gfx/transitions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultTransitionLimit, history.limit)

	w = do(router, http.MethodGet, "/api/v1/gfx/transitions?limit=1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	target, _ := jsonparser.GetString(w.Body.Bytes(), "[0]", "target")
	assert.Equal(t, "integrated", target)
	_, _, _, err := jsonparser.Get(w.Body.Bytes(), "[1]")
	assert.Error(t, err)

	for _, bad := range []string{"0", "-3", "abc", "501"} {
		w = do(router, http.MethodGet, "/api/v1/gfx/transitions?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestOptionalRoutes(t *testing.T) {
	router := SetupTestRouter(RouterDeps{Gfx: &fakeGfx{}})

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/gfx/devices", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/gfx/transitions", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/metrics", nil).Code)

	router = SetupTestRouter(RouterDeps{
		Gfx:     &fakeGfx{},
		Devices: fakeDevices{{ID: "0000:01:00.0", Vendor: "nvidia"}},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("gfxd_mode 1\n")) }),
	})

	w := do(router, http.MethodGet, "/api/v1/gfx/devices", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	id, _ := jsonparser.GetString(w.Body.Bytes(), "[0]", "id")
	assert.Equal(t, "0000:01:00.0", id)

	w = do(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	router := SetupTestRouter(RouterDeps{Gfx: &fakeGfx{}})

	w := do(router, http.MethodGet, "/api/v1/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := jsonparser.GetString(w.Body.Bytes(), "version")
	assert.NoError(t, err)
}
