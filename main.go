package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/spanishfactoria/textocorrector/internal/assistant"
	"github.com/spanishfactoria/textocorrector/internal/breaker"
	"github.com/spanishfactoria/textocorrector/internal/core"
	"github.com/spanishfactoria/textocorrector/internal/model"
	"github.com/spanishfactoria/textocorrector/internal/orchestrator"
	"github.com/spanishfactoria/textocorrector/internal/prompts"
	"github.com/spanishfactoria/textocorrector/internal/store"
	"github.com/spanishfactoria/textocorrector/internal/thread"
	"github.com/spanishfactoria/textocorrector/internal/tools"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
	pkgredis "github.com/spanishfactoria/textocorrector/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis     pkgredis.Config
	ThreadTTL string `envconfig:"THREAD_TTL" default:"168h"`

	// Pipeline
	Assistant model.AssistantConfig
	Breaker   model.BreakerConfig
	Run       model.RunConfig
	Thread    model.ThreadConfig
	Retry     model.RetryConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(cfg.ThreadTTL)
	if err != nil {
		log.Fatalf("Invalid THREAD_TTL '%s': %v", cfg.ThreadTTL, err)
	}

	client, err := assistant.NewClient(cfg.Assistant)
	if err != nil {
		log.Fatalf("Failed to build assistant client: %v", err)
	}

	st := store.NewRedisStore(rdb, ttl)
	registry := tools.NewRegistry(st)
	runner := assistant.NewRunner(client, registry, cfg.Run)
	threads := thread.NewManager(client, st, cfg.Thread)

	orch := orchestrator.New(orchestrator.Options{
		Breaker:      breaker.New(cfg.Breaker),
		Service:      client,
		Runner:       runner,
		Threads:      threads,
		Registry:     registry,
		Profiles:     st,
		Recorder:     st,
		AssistantCfg: cfg.Assistant,
		RetryCfg:     cfg.Retry,
		ThreadCfg:    cfg.Thread,
	})

	session := &thread.Session{OwnerID: "demo_user"}
	texto := "Ayer yo fue al cine con mis amigos. Nosotros vimos una pelicula muy divertido."

	raw, result := orch.Process(ctx, orchestrator.Request{
		UserMessage:  prompts.UserMessage(texto, "B1", "Intermedio", "español"),
		TaskType:     prompts.TaskCorrection,
		OriginalText: texto,
		Language:     "español",
		Session:      session,
	})

	if result.IsError() {
		logx.Error().Str("mensaje", result.Error).Msg("correction failed")
		return
	}

	fmt.Println("=== Respuesta del asistente ===")
	fmt.Println(raw)
	fmt.Println()
	fmt.Println("=== Corrección estructurada ===")
	fmt.Printf("Saludo: %s\n", result.Greeting)
	fmt.Printf("Tipo de texto: %s\n", result.TextType)
	fmt.Printf("Texto corregido: %s\n", result.CorrectedText)
	for category, items := range result.Errors {
		if len(items) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", category)
		for _, item := range items {
			fmt.Printf("  - %s -> %s (%s)\n", item.Fragment, item.Correction, item.Explanation)
		}
	}
	fmt.Printf("\nConsejo final: %s\n", result.FinalAdvice)
}
