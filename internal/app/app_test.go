package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/database"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.LoadWith(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Database = config.DatabaseConfig{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "integrity.db")}
	cfg.Cache.Driver = "memory"
	cfg.RabbitMQ.Enabled = false

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	migrator, err := database.NewMigrator(db)
	if err != nil {
		t.Fatalf("create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	a, err := New(ctx, cfg, zerolog.Nop(), db)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	if err := a.notifyPool.Start(ctx); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	})
	return a
}

func TestStatusWithoutBroker(t *testing.T) {
	a := newTestApp(t)

	status := a.status(context.Background())
	if status.Status != "healthy" || !status.Database || !status.Cache {
		t.Fatalf("expected healthy store and cache, got %+v", status)
	}
	if status.RabbitMQ {
		t.Fatal("expected broker reported as disabled")
	}
	if status.Consumer != nil {
		t.Fatalf("expected no consumer stats, got %v", status.Consumer)
	}
}

func TestRouterServesPipeline(t *testing.T) {
	a := newTestApp(t)
	handler := a.server.Handler

	for i, text := range []string{
		"Photosynthesis converts light energy into chemical energy stored in glucose molecules.",
		"Photosynthesis converts light energy into chemical energy stored in glucose molecules.",
	} {
		body := fmt.Sprintf(`{"answer_id":"ans-%[1]d","assessment_id":"exam-1","attempt_id":"att-%[1]d",
			"participant_id":"p%[1]d","question_id":"essay-1","question_type":"free_text","text":%[2]q}`, i+1, text)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/answers", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		if i == 1 {
			var resp struct {
				Data models.PipelineResult `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Data.Analysis == nil || !resp.Data.Analysis.IsFlagged {
				t.Fatalf("expected copied essay flagged, got %+v", resp.Data.Analysis)
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from status, got %d", rec.Code)
	}
}
