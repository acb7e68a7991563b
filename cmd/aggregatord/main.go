// Command aggregatord wires the aggregation subsystem together: it
// loads configuration, opens the database pool, builds the source
// registry, and drives the scheduler until it receives a shutdown
// signal.
package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"foodaggregator/internal/aggregator"
	"foodaggregator/internal/config"
	"foodaggregator/internal/ratelimit"
	"foodaggregator/internal/repository"
	"foodaggregator/internal/scheduler"
	"foodaggregator/internal/source"
	"foodaggregator/internal/source/usda"
)

func main() {
	configPath := os.Getenv("AGGREGATOR_CONFIG_FILE")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log.Println("Initializing food aggregator...")
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("USDA API: %s", cfg.USDAAPIURL)
	log.Printf("Quota: %d req/hour, worker bound: %d, max retries: %d, cooldown: %s",
		cfg.QuotaPerHour, cfg.WorkerBound, cfg.MaxRetries, cfg.Cooldown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer repo.Close()

	sources := buildSources(cfg)
	tasks := make([]scheduler.Task, 0, len(sources))
	for _, src := range sources {
		quota := ratelimit.NewQuota(cfg.QuotaPerHour)
		gate := aggregator.NewGate(cfg.Cooldown)
		tasks = append(tasks, aggregator.New(src, quota, gate, repo, cfg.MaxRetries, cfg.WorkerBound, cfg.Cooldown))
	}

	sched := scheduler.New(tasks)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	<-sigChan
	log.Println("Shutting down...")
	cancel()
	<-done
}

// buildSources is the source registry (C10): new upstream providers
// plug in here without touching the scheduler or supervisor.
func buildSources(cfg *config.Config) []source.Source {
	return []source.Source{
		usda.NewClient(cfg.USDAAPIURL, cfg.USDAAPIKey),
	}
}

func redactDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		if u.User != nil {
			user := u.User.Username()
			if user == "" {
				user = "user"
			}
			u.User = url.UserPassword(user, "****")
		}
		u.RawQuery = ""
		return u.String()
	}

	re := regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/?#]+):([^@]+)@`)
	if re.MatchString(raw) {
		return re.ReplaceAllString(raw, `$1:****@`)
	}
	re = regexp.MustCompile(`(?i)(password=)([^\s]+)`)
	return re.ReplaceAllString(raw, `$1****`)
}
