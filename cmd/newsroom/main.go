// Command newsroom researches and writes a news article with a roster of
// LLM agents: a web researcher, a writer, an editor, a revising writer, a
// fact-checker and a final reviewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// options holds the flag values shared by the commands.
type options struct {
	configPath string
	envFile    string
	logFile    string
	verbose    bool

	prompt string
	out    string
	diff   bool
	rounds int
	search string
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "newsroom",
		Short: "Research and write a news article with a team of agents",
		Long: `newsroom asks for the article requirements, then runs six agents in turn:
a web researcher, a writer, an editor, a revising writer, a fact-checker and a
final reviewer. Every agent sees the requirements and everything said before it.

Deployments are read from the environment (a .env file is loaded first):
AZURE_OPENAI_API_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_API_VERSION,
AZURE_OPENAI_NONREASONING_DEPLOYMENT_NAME and AZURE_OPENAI_REASONING_DEPLOYMENT_NAME.
A newsroom.yaml or newsroom.toml file replaces the built-in roster.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: newsroom.yaml or newsroom.toml if present, else built-in roster)")
	pf.StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")
	pf.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	f := root.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "article requirements (skips the interactive prompt)")
	f.StringVarP(&opts.out, "out", "o", "", "directory for the run transcript")
	f.BoolVar(&opts.diff, "diff", false, "also write a draft to article diff next to the transcript")
	f.IntVar(&opts.rounds, "rounds", 1, "maximum revision rounds while the final reviewer withholds COMPLETE")
	f.StringVar(&opts.search, "search", "", "web search mode: auto, hosted or local")

	root.AddCommand(newMCPCmd(opts), newConfigCmd(opts), newAgentsCmd(opts))

	return root
}
