package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd constructs the Cobra command tree wired to the HTTP client.
func buildRootCmd() *cobra.Command {
	c := &client{}
	root := &cobra.Command{
		Use:           "inferctl",
		Short:         "Client for the inferd session daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.addr, "addr", envStr("INFERCTL_ADDR", "http://127.0.0.1:8080"), "Base URL of the inferd server")

	root.AddCommand(&cobra.Command{Use: "models", Short: "List models discovered by the server", RunE: func(cmd *cobra.Command, args []string) error {
		return c.models(cmd.OutOrStdout())
	}})
	root.AddCommand(&cobra.Command{Use: "status", Short: "Show daemon status", RunE: func(cmd *cobra.Command, args []string) error {
		return c.status(cmd.OutOrStdout())
	}})

	sessionCmd := &cobra.Command{Use: "session", Short: "Manage inference sessions", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("session requires a subcommand: create|load|generate|status|unload|free")
	}}
	sessionCmd.AddCommand(&cobra.Command{Use: "create", Short: "Create a session and print its handle", RunE: func(cmd *cobra.Command, args []string) error {
		return c.create(cmd.OutOrStdout())
	}})

	loadCmd := &cobra.Command{Use: "load <session> <path-or-model-id>", Short: "Load a model into a session", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return c.load(cmd.OutOrStdout(), h, args[1])
	}}
	sessionCmd.AddCommand(loadCmd)

	var maxTokens int
	var temperature float64
	var stream bool
	genCmd := &cobra.Command{Use: "generate <session> <prompt>", Short: "Generate text in a session", Example: "  inferctl session generate 1 'Write a haiku' --max-tokens 64", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return c.generate(cmd.OutOrStdout(), h, args[1], maxTokens, temperature, stream)
	}}
	genCmd.Flags().IntVar(&maxTokens, "max-tokens", 128, "Token budget for the reply")
	genCmd.Flags().Float64Var(&temperature, "temperature", 0.8, "Sampling temperature (0 = greedy-ish)")
	genCmd.Flags().BoolVar(&stream, "stream", false, "Stream tokens as they are produced")
	sessionCmd.AddCommand(genCmd)

	sessionCmd.AddCommand(&cobra.Command{Use: "status <session>", Short: "Show one session's status", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return c.sessionStatus(cmd.OutOrStdout(), h)
	}})
	sessionCmd.AddCommand(&cobra.Command{Use: "unload <session>", Short: "Unload a session's model, keeping the session", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return c.unload(h)
	}})
	sessionCmd.AddCommand(&cobra.Command{Use: "free <session>", Short: "Retire a session", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		return c.free(h)
	}})
	root.AddCommand(sessionCmd)

	return root
}

func parseHandle(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session handle %q", s)
	}
	return h, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
