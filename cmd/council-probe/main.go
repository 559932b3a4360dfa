// Command council-probe checks that every configured council member answers
// through OpenRouter before the server is started.
//
// Run with: go run ./cmd/council-probe [-prompt "Say hello in exactly 5 words."]
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenstevester/llm-council/internal/config"
	"github.com/greenstevester/llm-council/internal/council"
	"github.com/greenstevester/llm-council/internal/openrouter"
)

func main() {
	prompt := flag.String("prompt", "Say hello in exactly 5 words.", "prompt sent to every model")
	timeout := flag.Duration("timeout", 30*time.Second, "per-model timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config.load.failed")
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	client := openrouter.NewClient(cfg.OpenRouterAPIURL, cfg.OpenRouterAPIKey, &http.Client{})
	gw := council.NewGateway(client, log)

	models := append([]string{}, cfg.CouncilModels...)
	if !slices.Contains(models, cfg.ChairmanModel) {
		models = append(models, cfg.ChairmanModel)
	}
	fmt.Printf("Querying %d models in parallel...\n", len(models))

	start := time.Now()
	results := council.Dispatch(context.Background(), gw, models, openrouter.UserMessage(*prompt), *timeout)
	elapsed := time.Since(start)

	for _, r := range results {
		if r.Succeeded {
			fmt.Printf("  ok   %-40s %5dms  %s\n", r.Model, r.LatencyMS, r.Content)
		} else {
			fmt.Printf("  FAIL %-40s %5dms  %s\n", r.Model, r.LatencyMS, r.Failure)
		}
	}
	fmt.Printf("\n%d/%d models succeeded in %.2fs\n", results.Succeeded(), len(results), elapsed.Seconds())

	if results.Succeeded() < len(results) {
		os.Exit(1)
	}
}
