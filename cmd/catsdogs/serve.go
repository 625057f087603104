package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/inference"
)

func runServe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	useONNX := fs.Bool("onnx", false, "serve the ONNX export through onnxruntime")
	addr := fs.String("addr", cfg.ServeAddr, "listen address")
	fs.Parse(args)

	classifier, names, closeFn, err := loadClassifier(cfg, *useONNX)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Printf("💡 Upload test: curl -X POST -F \"image=@cat.jpg\" http://%s/predict/image\n", *addr)
	server := inference.NewServer(classifier, names, cfg.TargetWidth, cfg.TargetHeight, cfg.Rescale)
	return server.ListenAndServe(ctx, *addr)
}
