// Command notifier runs one trial reminder scan and exits, for schedulers that
// start containers instead of calling the cron endpoint.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/pflag"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/app/bootstrap"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/default.yaml", "path to the YAML config file")
	quiet := pflag.BoolP("quiet", "q", false, "do not print the run summary")
	pflag.Parse()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap notifier runtime: %v", err)
	}
	result, err := runtime.RunNotifierOnce(ctx)
	if err != nil {
		log.Fatalf("run trial notifications: %v", err)
	}
	if !*quiet {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Stats); err != nil {
			log.Fatalf("write summary: %v", err)
		}
	}
}
