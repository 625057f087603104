package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/training"
)

// publishPlots writes every plot under the results directory and, when a
// plotting service is configured, sends it there as well. Plot failures are
// logged and never stop the pipeline.
func publishPlots(ctx context.Context, cfg config.Config, plots ...training.PlotData) {
	for _, plot := range plots {
		path, err := training.SavePlot(cfg.PlotDir(), plot)
		if err != nil {
			log.Printf("Failed to save %s plot: %v", plot.PlotType, err)
			continue
		}
		fmt.Printf("📊 Saved %s\n", path)
	}

	if cfg.PlotServiceURL == "" {
		return
	}

	service := training.NewPlottingService(cfg.PlotServiceURL, 30*time.Second)
	if err := service.CheckHealth(ctx); err != nil {
		log.Printf("Plotting service unavailable: %v", err)
		return
	}
	for _, plot := range plots {
		resp, err := service.SendPlotData(ctx, plot)
		if err != nil {
			log.Printf("Failed to send %s plot: %v", plot.PlotType, err)
			continue
		}
		if resp.ViewURL != "" {
			fmt.Printf("🔗 %s: %s\n", plot.PlotType, resp.ViewURL)
		}
	}
}
