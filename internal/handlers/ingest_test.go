package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"packhouse/internal/logger"
	"packhouse/internal/models"
	"packhouse/internal/service"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, logger.Get(logger.ErrorLevel))
	return h.InitRoutes()
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestEndpoint_RequiresTokenAndWeight(t *testing.T) {
	router := newTestRouter(&service.Service{})

	w := postJSON(t, router, "/api/v1/loadcell/ingest", gin.H{"token": "tok-1"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing weight: status %d, want 400", w.Code)
	}

	w = postJSON(t, router, "/api/v1/loadcell/ingest", gin.H{"weight": 3.5}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing token: status %d, want 400", w.Code)
	}
}

func TestIngestEndpoint_ZeroWeightIsValid(t *testing.T) {
	var got service.IngestInput
	svc := &service.Service{Ingestor: &mockIngestor{
		ingest: func(_ context.Context, in service.IngestInput) (models.Advisory, error) {
			got = in
			return models.Advisory{Threshold: 5, RelayThreshold: 50}, nil
		},
	}}
	router := newTestRouter(svc)

	w := postJSON(t, router, "/api/v1/loadcell/ingest",
		gin.H{"token": "tok-1", "weight": 0, "isRelayOn": true}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200; body %s", w.Code, w.Body.String())
	}
	if got.Token != "tok-1" || got.Weight != 0 || !got.RelayOn {
		t.Fatalf("bad input passed through: %+v", got)
	}
	if !got.DeliverCommand {
		t.Fatalf("synchronous path must request command delivery")
	}
}

func TestIngestEndpoint_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unknown device", service.ErrDeviceNotFound, http.StatusNotFound},
		{"validation", service.ErrValidation, http.StatusBadRequest},
		{"store failure", errors.New("sqlite: disk I/O error"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &service.Service{Ingestor: &mockIngestor{
				ingest: func(context.Context, service.IngestInput) (models.Advisory, error) {
					return models.Advisory{}, tc.err
				},
			}}
			router := newTestRouter(svc)

			w := postJSON(t, router, "/api/v1/loadcell/ingest",
				gin.H{"token": "tok-1", "weight": 3.5}, nil)
			if w.Code != tc.code {
				t.Fatalf("status %d, want %d", w.Code, tc.code)
			}
		})
	}
}

func TestIngestEndpoint_AdvisoryCarriesCommand(t *testing.T) {
	val := 2280.0
	svc := &service.Service{Ingestor: &mockIngestor{
		ingest: func(context.Context, service.IngestInput) (models.Advisory, error) {
			return models.Advisory{
				Threshold:      5,
				RelayThreshold: 50,
				Command:        &models.Command{Type: models.CommandCalibrate, Value: &val},
			}, nil
		},
	}}
	router := newTestRouter(svc)

	w := postJSON(t, router, "/api/v1/loadcell/ingest",
		gin.H{"token": "tok-1", "weight": 3.5}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}

	var adv models.Advisory
	if err := json.Unmarshal(w.Body.Bytes(), &adv); err != nil {
		t.Fatalf("unmarshal advisory: %v", err)
	}
	if adv.Threshold != 5 || adv.RelayThreshold != 50 {
		t.Fatalf("bad advisory: %+v", adv)
	}
	if adv.Command == nil || adv.Command.Type != models.CommandCalibrate || *adv.Command.Value != val {
		t.Fatalf("command lost in transit: %+v", adv.Command)
	}
}

func TestIngestEndpoint_NoOperatorTokenRequired(t *testing.T) {
	// The device path must stay reachable without a JWT: firmware holds only
	// its device token.
	svc := &service.Service{Ingestor: &mockIngestor{
		ingest: func(context.Context, service.IngestInput) (models.Advisory, error) {
			return models.Advisory{}, nil
		},
	}}
	router := newTestRouter(svc)

	w := postJSON(t, router, "/api/v1/loadcell/ingest",
		gin.H{"token": "tok-1", "weight": 1.0}, nil)
	if w.Code == http.StatusUnauthorized {
		t.Fatalf("ingest endpoint demanded operator auth")
	}
}
