package main

import (
	"context"
	"log"

	"github.com/spf13/pflag"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/app/bootstrap"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/default.yaml", "path to the YAML config file")
	pflag.Parse()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap worker runtime: %v", err)
	}
	if err := runtime.RunWorker(ctx); err != nil {
		log.Fatalf("run worker: %v", err)
	}
}
