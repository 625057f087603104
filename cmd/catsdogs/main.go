package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsawler/catsdogs/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: catsdogs [-config file] <command> [flags]

Commands:
  run        prepare, train and evaluate on the test split (default)
  prepare    scan, clean and split the dataset (-download fetches it first)
  train      train the classifier and save its artifacts
  evaluate   evaluate a saved classifier on the held-out lists
  serve      serve predictions over HTTP

`)
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "", "JSON file overlaying the default configuration")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	command := "run"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = runCommand(ctx, cfg, command, args)
	stop()
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func runCommand(ctx context.Context, cfg config.Config, command string, args []string) error {
	switch command {
	case "run":
		return runAll(ctx, cfg, args)
	case "prepare":
		return runPrepare(ctx, cfg, args)
	case "train":
		return runTrain(ctx, cfg, args)
	case "evaluate":
		return runEvaluate(ctx, cfg, args)
	case "serve":
		return runServe(ctx, cfg, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// runAll mirrors the end-to-end script: prepare, train, then evaluate the
// in-memory model on the test split directory
func runAll(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	download := fs.Bool("download", false, "download and extract the dataset first")
	fs.Parse(args)

	if err := prepare(ctx, cfg, *download); err != nil {
		return err
	}

	model, history, err := train(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println("\n--- Model evaluation metrics ---")
	publishPlots(ctx, cfg, trainingPlot(cfg, history))

	loader, err := testLoader(cfg, false)
	if err != nil {
		return err
	}
	return evaluate(ctx, cfg, model, loader)
}
