package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlottingService sends plot documents to a sidecar plotting application
type PlottingService struct {
	baseURL    string
	httpClient *http.Client
}

// PlottingResponse represents the response from the plotting service
type PlottingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PlotURL   string `json:"plot_url,omitempty"`
	ViewURL   string `json:"view_url,omitempty"`
	PlotID    string `json:"plot_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewPlottingService creates a client for the service at baseURL
func NewPlottingService(baseURL string, timeout time.Duration) *PlottingService {
	return &PlottingService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendPlotData posts one plot to /api/plot
func (ps *PlottingService) SendPlotData(ctx context.Context, plotData PlotData) (*PlottingResponse, error) {
	jsonData, err := json.Marshal(plotData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plot data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ps.baseURL+"/api/plot", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "catsdogs")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var plotResponse PlottingResponse
	if err := json.Unmarshal(respBody, &plotResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &plotResponse, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, plotResponse.Message)
	}
	return &plotResponse, nil
}

// CheckHealth checks if the plotting service is available
func (ps *PlottingService) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ps.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}
