package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/onwardjourney/agent/internal/agent"
	"github.com/onwardjourney/agent/internal/conversation"
	"github.com/onwardjourney/agent/internal/eval"
	"github.com/onwardjourney/agent/internal/knowledge"
	"github.com/onwardjourney/agent/internal/memory"
	"github.com/onwardjourney/agent/internal/search"
	"github.com/onwardjourney/agent/internal/server"
	logx "github.com/onwardjourney/agent/pkg/logger"
	pkgredis "github.com/onwardjourney/agent/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis  pkgredis.Config
	Server server.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Knowledge base
	KBPath    string `envconfig:"KB_PATH" required:"true"`
	Embedding knowledge.EmbedderConfig
	Scorer    knowledge.ScorerConfig

	// Agent configs
	Agent    agent.Config
	Response agent.ResponseModelConfig
	Triage   agent.TriageModelConfig
	Genesys  agent.GenesysConfig
	Search   search.Config
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg    AppConfig
	models *agent.ChatModels
	scorer *knowledge.CandidateScorer
	gate   *agent.TriageGate
	mem    *memory.JSONStore
}

func loadConfig() (AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		logx.Debug().Err(err).Msg("no .env file loaded")
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("process environment config: %w", err)
	}
	return cfg, nil
}

// bootstrap builds the shared pieces: models, embedded corpus, scorer, gate
// and (optionally) the memory store. Configuration or knowledge-base errors
// are fatal here rather than surfacing mid-conversation.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	models, err := agent.NewChatModels(ctx, agent.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		RespConfig: &cfg.Response,
		TriageCfg:  &cfg.Triage,
	})
	if err != nil {
		return nil, err
	}

	embedder, err := knowledge.NewGeminiEmbedder(models.Client, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	records, err := knowledge.LoadRecordsCSV(cfg.KBPath)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	logx.Info().Int("records", len(records)).Str("path", cfg.KBPath).Msg("knowledge base loaded")

	corpus, err := knowledge.BuildCorpus(ctx, embedder, records)
	if err != nil {
		return nil, fmt.Errorf("build corpus: %w", err)
	}
	scorer := knowledge.NewCandidateScorer(corpus, embedder, cfg.Scorer)

	a := &app{
		cfg:    cfg,
		models: models,
		scorer: scorer,
		gate:   agent.NewTriageGate(models.Triage),
	}

	if cfg.Agent.Memory.Enabled {
		a.mem, err = memory.NewJSONStore(embedder, cfg.Agent.Memory.Path, cfg.Agent.Memory.MaxItemsPerSession)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
	}
	return a, nil
}

// buildRegistry assembles the tool set and binds it to the response model.
func (a *app) buildRegistry(ctx context.Context) (*agent.Registry, error) {
	registry := agent.NewRegistry()
	if err := registry.Register(ctx, agent.NewInternalKBTool(a.scorer)); err != nil {
		return nil, err
	}
	if err := registry.Register(ctx, agent.NewGOVUKTool(search.NewGOVUKClient(a.cfg.Search))); err != nil {
		return nil, err
	}
	for _, dept := range agent.Departments(a.cfg.Genesys) {
		if err := registry.Register(ctx, agent.NewHandoffTool(dept, a.cfg.Genesys.Region)); err != nil {
			return nil, err
		}
	}

	infos, err := registry.Infos(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.models.BindToolsToResponseModel(ctx, infos); err != nil {
		return nil, err
	}
	return registry, nil
}

// newAgent builds one orchestrator over the given session manager.
func (a *app) newAgent(registry *agent.Registry, sessions *conversation.Manager) *agent.Agent {
	var mem *memory.Store
	if a.mem != nil {
		mem = a.mem.Store
	}
	return agent.New(a.models.Response, a.models.ResponseModelName, a.gate, registry, sessions, mem, a.cfg.Agent)
}

// sessionManager wires Redis persistence when configured, in-memory otherwise.
func (a *app) sessionManager() (*conversation.Manager, error) {
	if a.cfg.Redis.URL == "" {
		return conversation.NewManager(nil), nil
	}
	rdb, err := a.cfg.Redis.New()
	if err != nil {
		return nil, fmt.Errorf("initialise redis: %w", err)
	}
	ttl, err := time.ParseDuration(a.cfg.Agent.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", a.cfg.Agent.Session.TTL, err)
	}
	return conversation.NewManager(conversation.NewRedisRepository(rdb, ttl)), nil
}

func (a *app) close() {
	if a.mem != nil {
		if err := a.mem.Close(); err != nil {
			logx.Error().Err(err).Msg("failed to flush memory store")
		}
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			registry, err := a.buildRegistry(ctx)
			if err != nil {
				return err
			}
			sessions, err := a.sessionManager()
			if err != nil {
				return err
			}
			ag := a.newAgent(registry, sessions)
			sessionID := fmt.Sprintf("cli-%d", time.Now().Unix())

			fmt.Println("You are now speaking with the Onward Journey Agent. Type 'quit' to end.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "quit" || input == "exit" || input == "end" {
					fmt.Println("Conversation ended.")
					break
				}

				res, err := ag.Send(ctx, sessionID, input, agent.SendOptions{})
				if err != nil {
					fmt.Printf("error: %v\n", err)
					continue
				}
				fmt.Printf("\nAgent: %s\n\n", res.Text)
				if res.Handoff != nil {
					fmt.Printf("[handoff signal emitted for deployment %s]\n\n", res.Handoff.DeploymentID)
				}
			}
			return scanner.Err()
		},
	}
}

func newEvalCmd() *cobra.Command {
	var (
		testDataPath string
		mode         string
		outputDir    string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the two-phase evaluation harness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			registry, err := a.buildRegistry(ctx)
			if err != nil {
				return err
			}

			cases, err := eval.LoadTestCases(testDataPath)
			if err != nil {
				return err
			}
			logx.Info().Int("cases", len(cases)).Str("path", testDataPath).Msg("test cases loaded")

			// Fresh session manager and no memory store per case, so neither
			// history nor stored answers leak between cases or modes.
			factory := func(ctx context.Context) (eval.Sender, error) {
				return agent.New(a.models.Response, a.models.ResponseModelName, a.gate,
					registry, conversation.NewManager(nil), nil, a.cfg.Agent), nil
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			run := func(m eval.Mode) ([]eval.CaseResult, error) {
				results := eval.Evaluate(ctx, factory, cases, m)
				path := filepath.Join(outputDir, fmt.Sprintf("report_%s.csv", m))
				if err := eval.WriteReportCSV(path, results); err != nil {
					return nil, err
				}
				fmt.Printf("\n[%s]\n%s\n", m, eval.ConfusionSummary(results))
				return results, nil
			}

			switch mode {
			case "forced":
				_, err = run(eval.ModeForced)
				return err
			case "clarification":
				_, err = run(eval.ModeClarification)
				return err
			case "both":
				forced, err := run(eval.ModeForced)
				if err != nil {
					return err
				}
				clar, err := run(eval.ModeClarification)
				if err != nil {
					return err
				}
				if m, ok := eval.ClarificationSuccessGain(clar, forced); ok {
					fmt.Printf("Clarification success gain: %.3f (clarification %.3f vs forced %.3f, n=%d)\n",
						m.ClarificationSuccessGain, m.ClarificationPassRate, m.ForcedPassRate, m.SampleSize)
				} else {
					fmt.Println("Clarification success gain: no ambiguous cases in both runs.")
				}
				return nil
			default:
				return fmt.Errorf("unknown mode %q (want forced, clarification or both)", mode)
			}
		},
	}
	cmd.Flags().StringVar(&testDataPath, "test-data", "user_prompts.csv", "path to the test query CSV or JSON")
	cmd.Flags().StringVar(&mode, "mode", "both", "forced, clarification or both")
	cmd.Flags().StringVar(&outputDir, "output", "./output", "directory for report CSVs")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			registry, err := a.buildRegistry(ctx)
			if err != nil {
				return err
			}
			sessions, err := a.sessionManager()
			if err != nil {
				return err
			}
			ag := a.newAgent(registry, sessions)

			pkg := server.HandoffPackage{
				HandoffAgentID:        "Chatbot Agent",
				ModelUsed:             a.models.ResponseModelName,
				SystemInstructionUsed: "Generic assistant.",
				FinalConversationHistory: []server.TranscriptTurn{
					{Role: "user", Text: "I was asking about childcare."},
					{Role: "model", Text: "That requires specialized assistance."},
				},
				NextAgentPrompt: "Can you help me with childcare options?",
				Status:          "DATA_COLLECTED_AND_READY_FOR_HANDOFF",
			}

			return server.New(ag, pkg).Run(a.cfg.Server)
		},
	}
}

func main() {
	logx.Init()

	root := &cobra.Command{
		Use:           "onward-journey",
		Short:         "Conversational agent for routing users to the right government service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newChatCmd(), newEvalCmd(), newServeCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		logx.Fatal().Err(err).Msg("command failed")
	}
}
