// talemate is a one-shot generation CLI for the client layer. It exists so a
// backend can be exercised without the full orchestrator: pick a client type,
// point it at an endpoint, and generate.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/MiyeonLin/talemate"
	"github.com/MiyeonLin/talemate/emit"

	// Register backend clients.
	_ "github.com/MiyeonLin/talemate/clients/anthropic"
	_ "github.com/MiyeonLin/talemate/clients/lorem"
	_ "github.com/MiyeonLin/talemate/clients/openaicompat"
)

func main() {
	if err := execute(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "talemate",
		Usage: "LLM backend client toolbox",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			generateCommand(),
			clientsCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Run a single generation against a backend",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "client",
				Usage: "client type tag (openai_compat|anthropic|lorem)",
				Value: "openai_compat",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "base URL of the backend API",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API key (falls back to TALEMATE_API_KEY)",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "model identifier",
			},
			&cli.StringFlag{
				Name:  "max-token-length",
				Usage: "context window to assume",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "generation kind (conversation|narrate|create|director|summarize|analyze)",
				Value: string(talemate.KindConversation),
			},
			&cli.StringFlag{
				Name:  "system",
				Usage: "system message prepended via the prompt template",
			},
		},
		Action: generateAction,
	}
}

func clientsCommand() *cli.Command {
	return &cli.Command{
		Name:  "clients",
		Usage: "List registered client types",
		Action: func(_ context.Context, _ *cli.Command) error {
			for _, t := range talemate.GetClientRegistry().Types() {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd.String("log-level")); err != nil {
		return err
	}

	prompt := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("a prompt argument is required")
	}

	// .env is optional; system env vars win.
	_ = godotenv.Load()

	cfg := talemate.DefaultConfig()
	if v := cmd.String("api-url"); v != "" {
		cfg.APIURL = v
	}
	cfg.APIKey = cmd.String("api-key")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("TALEMATE_API_KEY")
	}
	cfg.Model = cmd.String("model")
	if v := cmd.String("max-token-length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid max-token-length %q: %w", v, err)
		}
		cfg.MaxTokenLength = n
	}

	client, err := talemate.CreateClient(cmd.String("client"), cfg)
	if err != nil {
		return err
	}

	// Surface status notifications the way the orchestrator would.
	unsubscribe := emit.Default().Subscribe(emit.ChannelStatus, func(msg emit.Message) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", msg.Severity, msg.Text)
	})
	defer unsubscribe()

	kind := talemate.GenerationKind(cmd.String("kind"))
	params := talemate.Parameters{}
	client.TunePromptParameters(params, kind)

	rendered := client.PromptTemplate(cmd.String("system"), prompt)

	slog.Debug("generating",
		"client", client.Type(),
		"model", client.ModelName(),
		"kind", kind,
		"parameters", params,
	)

	text := client.Generate(ctx, rendered, params, kind)
	if text == "" {
		return fmt.Errorf("generation failed (see status output above)")
	}

	fmt.Println(text)
	return nil
}

func setupLogging(levelText string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
