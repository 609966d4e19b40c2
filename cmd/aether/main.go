package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/sakkshm/aether/pkg/bus"
	"github.com/sakkshm/aether/pkg/config"
	"github.com/sakkshm/aether/pkg/gateway"
	"github.com/sakkshm/aether/pkg/logger"
	"github.com/sakkshm/aether/pkg/memory"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "aether"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aether", "config.json")
	}
	return filepath.Join(home, ".aether", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func buildService(cfg *config.Config, log *zap.SugaredLogger) (*memory.Service, error) {
	var extractor memory.Extractor
	if strings.EqualFold(cfg.Extractor.Mode, "llm") {
		llm, err := memory.NewLLMExtractor(cfg.Extractor.APIBase, cfg.Extractor.APIKey, cfg.Extractor.Model)
		if err != nil {
			return nil, fmt.Errorf("configure llm extractor: %w", err)
		}
		extractor = llm
	}

	return memory.NewService(memory.Config{
		Workspace:           cfg.WorkspacePath(),
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
		TopK:                cfg.Memory.TopK,
		LastN:               cfg.Memory.LastPrompts,
		QueryTimeout:        time.Duration(cfg.Memory.QueryTimeoutMS) * time.Millisecond,
		CacheTTL:            time.Duration(cfg.Memory.CacheTTLSeconds) * time.Second,
		ReconcileSchedule:   cfg.Memory.ReconcileSchedule,
		EmbeddingModel:      cfg.Memory.EmbeddingModel,
		Extractor:           extractor,
	}, log.Named("memory"))
}

func onboard() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	cfg := config.DefaultConfig()
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.WorkspacePath(), "state"), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("Created %s\n", path)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	return nil
}

func serveCmd(debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	dispatcher := bus.NewDispatcher()
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := gateway.NewServer(svc, dispatcher, log.Named("gateway"))
	return server.Run(ctx, cfg.Gateway.Host, cfg.Gateway.Port)
}

func withService(fn func(ctx context.Context, svc *memory.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(context.Background(), svc)
}

func saveCmd(prompt, origin string) error {
	return withService(func(ctx context.Context, svc *memory.Service) error {
		result := svc.SavePrompt(ctx, prompt, origin)
		if result.Status == memory.StatusError {
			return fmt.Errorf("%s", result.Message)
		}
		fmt.Printf("%s (extracted %d)\n", result.Status, result.Extracted)
		return nil
	})
}

func promptsCmd(n int) error {
	return withService(func(ctx context.Context, svc *memory.Service) error {
		prompts, err := svc.LastPrompts(ctx, n)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			fmt.Println("No prompts saved yet.")
			return nil
		}
		for _, p := range prompts {
			fmt.Printf("[%s] %s\n", p.Timestamp, p.Text)
		}
		return nil
	})
}

func recallCmd(query string, k int) error {
	return withService(func(ctx context.Context, svc *memory.Service) error {
		results, mode, err := svc.TopKMemories(ctx, query, k)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No memories yet.")
			return nil
		}
		fmt.Printf("Mode: %s\n", mode)
		for _, r := range results {
			if r.Score > 0 {
				fmt.Printf("- [%s] %s (score %.3f)\n", r.Entry.Type, r.Entry.Memory, r.Score)
				continue
			}
			fmt.Printf("- [%s] %s\n", r.Entry.Type, r.Entry.Memory)
		}
		return nil
	})
}

func forgetCmd(id, timestamp string) error {
	return withService(func(ctx context.Context, svc *memory.Service) error {
		if err := svc.DeleteMemory(ctx, memory.MemoryRef{ID: id, Timestamp: timestamp}); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	})
}

func shellCmd() error {
	return withService(func(ctx context.Context, svc *memory.Service) error {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          appName + "> ",
			HistoryFile:     filepath.Join(os.TempDir(), ".aether_history"),
			HistoryLimit:    100,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("init readline: %w", err)
		}
		defer rl.Close()

		fmt.Println("Type a prompt to save it. /recall <query>, /prompts, /help, exit.")
		for {
			line, err := rl.Readline()
			if err != nil {
				if err == readline.ErrInterrupt || err == io.EOF {
					fmt.Println("\nGoodbye!")
					return nil
				}
				fmt.Printf("Error reading input: %v\n", err)
				continue
			}

			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				fmt.Println("Goodbye!")
				return nil
			}

			switch {
			case input == "/help":
				fmt.Println("  <text>            save the prompt and consolidate memories")
				fmt.Println("  /recall <query>   semantic recall")
				fmt.Println("  /prompts          recent prompts")
			case input == "/prompts":
				prompts, err := svc.LastPrompts(ctx, 0)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					continue
				}
				for _, p := range prompts {
					fmt.Printf("  [%s] %s\n", p.Timestamp, p.Text)
				}
			case strings.HasPrefix(input, "/recall"):
				query := strings.TrimSpace(strings.TrimPrefix(input, "/recall"))
				results, mode, err := svc.TopKMemories(ctx, query, 0)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					continue
				}
				fmt.Printf("  (%s)\n", mode)
				for _, r := range results {
					fmt.Printf("  - [%s] %s\n", r.Entry.Type, r.Entry.Memory)
				}
			default:
				result := svc.SavePrompt(ctx, input, "shell")
				fmt.Printf("  %s (extracted %d)\n", result.Status, result.Extracted)
			}
		}
	})
}
