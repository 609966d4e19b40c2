package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "aether",
		Short: "Personal memory engine with prompt capture, consolidation, and semantic recall",
		Long: strings.TrimSpace(`aether captures your prompts, distills them into durable memory
statements, and answers recall queries over them.

Run the websocket gateway for browser clients, or use the CLI commands
directly against the local store.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newSaveCommand())
	root.AddCommand(newPromptsCommand())
	root.AddCommand(newRecallCommand())
	root.AddCommand(newForgetCommand())
	root.AddCommand(newShellCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.aether config and workspace",
		Example: "  aether onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the websocket gateway",
		Long:    "Start the memory service, reconcile worker, and websocket endpoint for clients.",
		Example: "  aether serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd(debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newSaveCommand() *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:     "save <prompt>",
		Short:   "Save a prompt and consolidate extracted memories",
		Args:    cobra.MinimumNArgs(1),
		Example: "  aether save \"I love hiking on weekends\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveCmd(strings.Join(args, " "), origin)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "cli", "Origin label recorded with the prompt")
	return cmd
}

func newPromptsCommand() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:     "prompts",
		Short:   "Show recent prompts, newest first",
		Example: "  aether prompts -n 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			return promptsCmd(n)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "How many prompts to show (0 = configured default)")
	return cmd
}

func newRecallCommand() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall memories relevant to a query",
		Long:  "Semantic recall over consolidated memories. Without a query the most recent memories are returned.",
		Example: strings.Join([]string{
			"  aether recall \"outdoor activities\"",
			"  aether recall -k 3",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return recallCmd(strings.Join(args, " "), k)
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "How many memories to return (0 = configured default)")
	return cmd
}

func newForgetCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:     "forget <timestamp>",
		Short:   "Delete the memory recorded at the given timestamp",
		Args:    cobra.ExactArgs(1),
		Example: "  aether forget 2026-08-29T10:15:00Z",
		RunE: func(cmd *cobra.Command, args []string) error {
			return forgetCmd(id, args[0])
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Vector key, when known, for index cleanup")
	return cmd
}

func newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "shell",
		Short:   "Interactive prompt capture and recall session",
		Example: "  aether shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return shellCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  aether version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
