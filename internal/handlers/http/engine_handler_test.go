package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/internal/core/services"
	"playgrid/internal/infrastructure/bridge"
	"playgrid/internal/infrastructure/events"
	"playgrid/internal/infrastructure/middleware"
	"playgrid/internal/infrastructure/monitoring"
	"playgrid/internal/infrastructure/repositories/memory"
	"playgrid/internal/infrastructure/surfacepool"
	"playgrid/pkg/backoff"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSurface struct {
	mu       sync.Mutex
	id       domain.SurfaceID
	streamID domain.StreamID
	alive    bool
}

func (s *stubSurface) ID() domain.SurfaceID      { return s.id }
func (s *stubSurface) StreamID() domain.StreamID { return s.streamID }

func (s *stubSurface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *stubSurface) Send(ctx context.Context, cmd domain.SurfaceCommand) error {
	return nil
}

func (s *stubSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	return nil
}

var _ ports.RenderingSurface = (*stubSurface)(nil)

type handlerFixture struct {
	router *gin.Engine
	pool   *surfacepool.Pool
	mixer  *services.AudioMixerService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	logger := zaptest.NewLogger(t).Sugar()
	publisher := events.NewPublisher(nil, logger)
	t.Cleanup(publisher.Close)

	embed := services.NewEmbedBuilder("")
	pool := surfacepool.New(surfacepool.DefaultConfig(), embed, monitoring.NoopCollector{}, logger)
	mixer := services.NewAudioMixerService(services.DefaultAudioConfig(), monitoring.NoopCollector{}, logger)
	registry := services.NewRegistryService(
		memory.NewMemoryStateRepository(),
		memory.NewMemorySessionRepository(),
		pool,
		mixer,
		publisher,
		monitoring.NoopCollector{},
		logger,
	)
	policy := backoff.Config{BaseDelay: time.Minute, MaxDelay: time.Minute, MaxRetries: 3, JitterFraction: 0}
	recovery := services.NewRecoveryCoordinatorService(
		policy, time.Hour,
		services.NewStrategyTable(embed),
		publisher,
		monitoring.NoopCollector{},
		logger,
	)
	manager := services.NewEngineManager(
		services.DefaultEngineConfig(),
		services.DefaultAdaptiveConfig(),
		registry,
		pool,
		mixer,
		recovery,
		embed,
		publisher,
		monitoring.NoopCollector{},
		logger,
	)
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	tokens := bridge.NewTokenIssuer("test-secret", time.Minute)
	handler := NewEngineHandler(manager, registry, mixer, manager, publisher, tokens)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	handler.SetupRoutes(router)

	return &handlerFixture{router: router, pool: pool, mixer: mixer}
}

func (f *handlerFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) loadStream(t *testing.T, id string) {
	t.Helper()
	f.pool.Register(&stubSurface{id: domain.SurfaceID("surf-" + id), streamID: domain.StreamID(id), alive: true}, domain.StreamID(id))
	w := f.request(t, http.MethodPost, "/api/v1/streams",
		`{"id":"`+id+`","source_url":"https://www.twitch.tv/`+id+`","platform":"twitch"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestLoadStream_ReturnsPairingToken(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/streams",
		`{"id":"alpha","source_url":"https://www.twitch.tv/alpha","platform":"twitch"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		StreamID     string `json:"stream_id"`
		PairingToken string `json:"pairing_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alpha", resp.StreamID)
	assert.NotEmpty(t, resp.PairingToken)
}

func TestLoadStream_ValidationFailures(t *testing.T) {
	f := newHandlerFixture(t)

	// Missing required fields.
	w := f.request(t, http.MethodPost, "/api/v1/streams", `{"id":"alpha"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown platform fails session validation.
	w = f.request(t, http.MethodPost, "/api/v1/streams",
		`{"id":"alpha","source_url":"https://example.com/x","platform":"myspace"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadStream_DuplicateConflict(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	w := f.request(t, http.MethodPost, "/api/v1/streams",
		`{"id":"alpha","source_url":"https://www.twitch.tv/alpha","platform":"twitch"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAndListStreams(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	w := f.request(t, http.MethodGet, "/api/v1/streams/alpha", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alpha")

	w = f.request(t, http.MethodGet, "/api/v1/streams", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodGet, "/api/v1/streams/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransportEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent, f.request(t, http.MethodPost, "/api/v1/streams/alpha/play", "").Code)
	assert.Equal(t, http.StatusNoContent, f.request(t, http.MethodPost, "/api/v1/streams/alpha/pause", "").Code)
	assert.Equal(t, http.StatusNoContent, f.request(t, http.MethodPost, "/api/v1/streams/alpha/focus", "").Code)

	assert.Equal(t, http.StatusNotFound, f.request(t, http.MethodPost, "/api/v1/streams/ghost/play", "").Code)
}

func TestVolumeAndMuteEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/volume", `{"volume":0.5}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/volume", `{}`).Code)

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/muted", `{"muted":true}`).Code)
	assert.Equal(t, 0.0, f.mixer.EffectiveVolume("alpha"))
}

func TestQualityEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/quality", `{"level":"high"}`).Code)

	// A second manual change inside the cooldown window is rejected.
	assert.Equal(t, http.StatusTooManyRequests,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/quality", `{"level":"low"}`).Code)

	// Adaptive changes bypass the cooldown.
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/quality", `{"level":"low","adaptive":true}`).Code)

	assert.Equal(t, http.StatusBadRequest,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/quality", `{"level":"8k"}`).Code)
}

func TestVisibilityEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/visibility", `{"visible":false}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.request(t, http.MethodPut, "/api/v1/streams/alpha/visibility", `{}`).Code)
}

func TestSystemEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/interruption", `{"phase":"began"}`).Code)
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/interruption", `{"phase":"ended","should_resume":true}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.request(t, http.MethodPost, "/api/v1/system/interruption", `{"phase":"sideways"}`).Code)

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/route-change", `{"output_lost":true}`).Code)
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/memory-warning", "").Code)
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/background", "").Code)
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/foreground", "").Code)
	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodPost, "/api/v1/system/volume-button", `{"increase":true}`).Code)
}

func TestCloseStream(t *testing.T) {
	f := newHandlerFixture(t)
	f.loadStream(t, "alpha")

	assert.Equal(t, http.StatusNoContent,
		f.request(t, http.MethodDelete, "/api/v1/streams/alpha", "").Code)
	assert.Equal(t, http.StatusNotFound,
		f.request(t, http.MethodGet, "/api/v1/streams/alpha", "").Code)
}
