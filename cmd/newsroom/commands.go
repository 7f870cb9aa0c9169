package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/newsroom/pkg/engine"
	"github.com/germanamz/newsroom/pkg/tools/mcpserver"
	"github.com/germanamz/newsroom/pkg/transcript"
)

// runWorkflow asks for the requirements, runs the roster and prints every
// turn as it streams in.
func runWorkflow(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg, opts)

	log, closeLog, err := newLogger(opts.verbose, opts.logFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	eng, err := engine.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	out := cmd.OutOrStdout()
	con := newConsole(out, isTerminal(out))
	con.Intro()

	requirements := opts.prompt
	if requirements == "" {
		requirements, err = readRequirements(cmd.InOrStdin(), out, isTerminal(cmd.InOrStdin()))
		if err != nil {
			return err
		}
	} else {
		con.Echo(requirements)
	}

	res, err := eng.Run(ctx, requirements, con)
	if err != nil {
		return err
	}
	con.Finish(res)

	if cfg.Output.Dir == "" {
		return nil
	}

	paths, err := transcript.Write(cfg.Output.Dir, res, cfg.Output.Diff)
	if err != nil {
		return err
	}
	for _, p := range paths {
		con.Saved(p)
	}

	return nil
}

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the write_article tool over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			log, closeLog, err := newLogger(opts.verbose, opts.logFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			eng, err := engine.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			srv := mcpserver.New("newsroom", version)
			srv.RegisterToolBox(eng.Tools())
			log.InfoContext(ctx, "serving mcp", "tools", srv.ToolNames())

			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked, then validate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			if err := printConfig(cmd.OutOrStdout(), cfg.Redacted(), format); err != nil {
				return err
			}

			return cfg.Validate()
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or toml")

	return cmd
}

func printConfig(w io.Writer, cfg engine.Config, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("config: unknown format %q", format)
	}
}

func newAgentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent roster in running order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			printAgents(cmd.OutOrStdout(), cfg)

			return nil
		},
	}
}

func printAgents(w io.Writer, cfg engine.Config) {
	models := make(map[string]string, len(cfg.Providers))
	for _, p := range cfg.Providers {
		model := p.Deployment
		if model == "" {
			model = p.Model
		}
		models[p.Name] = fmt.Sprintf("%s (%s)", p.Name, model)
	}

	rows := [][]string{{"#", "TITLE", "AGENT", "PROVIDER", "ROLE"}}
	for i, a := range cfg.Agents {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			a.Title,
			a.Name,
			models[a.Provider],
			agentRole(a),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func agentRole(a engine.AgentConfig) string {
	var tags []string
	if a.WebSearch {
		tags = append(tags, "web search")
	}
	if a.Draft {
		tags = append(tags, "draft")
	}
	if a.Article {
		tags = append(tags, "article")
	}
	if a.Verdict != "" && a.Verdict != "none" {
		tags = append(tags, a.Verdict)
	}
	tags = append(tags, a.Toolboxes...)

	return strings.Join(tags, ", ")
}
