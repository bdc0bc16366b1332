package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/internal/infrastructure/localstore"
)

var Version = "dev"

// app holds the state shared by every subcommand.
type app struct {
	server    string
	statePath string
	timeout   time.Duration
	dial      fasthttp.DialFunc

	store  *localstore.Store
	client *apiClient
}

func main() {
	if err := run(&app{}, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one command line and releases the local state file afterwards.
func run(a *app, args []string, out io.Writer) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	defer a.close()
	return root.Execute()
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".taskboard", "boardctl.db")
	}
	return filepath.Join(home, ".taskboard", "boardctl.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Command line client for the task board API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			store, err := localstore.Open(a.statePath, "boardctl")
			if err != nil {
				return fmt.Errorf("open local state: %w", err)
			}
			a.store = store
			a.client = newAPIClient(a.server, store, a.timeout, a.dial)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("BOARDCTL_SERVER", "http://localhost:8080"), "task board API base URL")
	flags.StringVar(&a.statePath, "state", envOr("BOARDCTL_STATE", defaultStatePath()), "path of the local state file")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(loginCmd(a))
	root.AddCommand(logoutCmd(a))
	root.AddCommand(whoamiCmd(a))
	root.AddCommand(boardCmd(a))
	root.AddCommand(taskCmd(a))
	return root
}
