package training

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlottingServiceSendPlotData(t *testing.T) {
	var received PlotData
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/plot" {
			http.Error(w, "unexpected request", http.StatusNotFound)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(PlottingResponse{Success: true, Message: "ok", PlotID: "42"})
	}))
	defer server.Close()

	ps := NewPlottingService(server.URL, 5*time.Second)
	resp, err := ps.SendPlotData(context.Background(), TrainingCurvesPlot(sampleHistory(), "logistic"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !resp.Success || resp.PlotID != "42" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if received.PlotType != PlotTrainingCurves || len(received.Series) != 4 {
		t.Errorf("Server received unexpected plot %+v", received)
	}
}

func TestPlottingServiceErrors(t *testing.T) {
	t.Run("ErrorStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(PlottingResponse{Success: false, Message: "bad plot"})
		}))
		defer server.Close()

		resp, err := NewPlottingService(server.URL, time.Second).SendPlotData(context.Background(), PlotData{})
		if err == nil {
			t.Fatal("Expected error for 400 response")
		}
		if resp == nil || resp.Message != "bad plot" {
			t.Errorf("Expected the decoded error response, got %+v", resp)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		if _, err := NewPlottingService(server.URL, time.Second).SendPlotData(context.Background(), PlotData{}); err == nil {
			t.Error("Expected error for invalid response body")
		}
	})
}

func TestPlottingServiceCheckHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ps := NewPlottingService(server.URL, time.Second)
	if err := ps.CheckHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy service, got %v", err)
	}

	healthy = false
	if err := ps.CheckHealth(context.Background()); err == nil {
		t.Error("Expected error for unhealthy service")
	}
}
