package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/config"
	localstorage "github.com/JakeFAU/site-audit/internal/storage/local"
	memorystorage "github.com/JakeFAU/site-audit/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080, ShutdownTimeoutSeconds: 1},
		Auth:      config.AuthConfig{SetupToken: "token"},
		Headless:  config.HeadlessConfig{NavTimeoutSeconds: 30, RenderTimeoutSeconds: 30},
		PageSpeed: config.PageSpeedConfig{TimeoutSeconds: 90},
		LLM:       config.LLMConfig{APIKey: "sk-test", PresenceMaxTokens: 1024, ReportMaxTokens: 4096},
		Email:     config.EmailConfig{APIKey: "re_test", From: "audit@example.com", TeamRecipient: "team@example.com"},
		Report:    config.ReportConfig{Brand: "Site Audit", Language: "English", LangCode: "en", Direction: "ltr"},
		Storage:   config.StorageConfig{Backend: config.StorageMemory, Prefix: "reports"},
		Pipeline:  config.PipelineConfig{IntakeTimeoutSeconds: 5, StoreTimeoutSeconds: 10},
	}
}

func TestBuildInMemory(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.IsType(t, &memorystorage.StatusStore{}, app.Records())
	require.NotNil(t, app.Orchestrator())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/db-setup", nil)
	req.Header.Set("Authorization", "Bearer token")
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSetupStorageBackends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		dir     bool
		want    any
	}{
		{name: "memory", backend: config.StorageMemory, want: &memorystorage.BlobStore{}},
		{name: "local", backend: config.StorageLocal, dir: true, want: &localstorage.BlobStore{}},
		{name: "none", backend: config.StorageNone, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			cfg.Storage.Backend = tt.backend
			if tt.dir {
				cfg.Storage.LocalDir = t.TempDir()
			}
			app := &App{cfg: cfg, logger: zap.NewNop()}
			blobs, err := app.setupStorage(context.Background())
			require.NoError(t, err)
			if tt.want == nil {
				require.Nil(t, blobs)
				return
			}
			require.IsType(t, tt.want, blobs)
		})
	}
}

func TestSetupPublisherDisabled(t *testing.T) {
	t.Parallel()

	app := &App{cfg: testConfig(), logger: zap.NewNop()}
	pub, err := app.setupPublisher(context.Background())
	require.NoError(t, err)
	require.Nil(t, pub)
}
