// Command skein is a dependency-aware issue tracker for coding agents and
// the humans supervising them. State lives in an embedded SQLite database
// under .skein/ in the project root; every command opens the store, does
// its work, and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/configfile"
	"github.com/skeinhq/skein/internal/storage/sqlite"
	"github.com/skeinhq/skein/internal/telemetry"
	"github.com/skeinhq/skein/internal/types"
	"github.com/skeinhq/skein/internal/workflow"
)

var version = "0.3.0"

var (
	actorFlag  string
	jsonOutput bool
	dirFlag    string

	store *sqlite.Store

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var rootCmd = &cobra.Command{
	Use:           "skein",
	Short:         "Dependency-aware issue tracking for agent swarms",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := telemetry.Init(rootCtx, "skein", version); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", warnStyle.Render("telemetry disabled: "+err.Error()))
	}
	defer func() { _ = telemetry.Shutdown(context.Background()) }()

	err := rootCmd.ExecuteContext(rootCtx)
	if store != nil {
		_ = store.Close()
	}
	if err != nil {
		fatalError(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor recorded in the audit trail (default: $SKEIN_ACTOR or OS user)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "project directory (default: walk up from cwd)")
}

// currentActor resolves the audit identity: flag, environment, OS user.
func currentActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if env := os.Getenv("SKEIN_ACTOR"); env != "" {
		return env
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// findProjectDir walks up from start looking for a .skein directory.
func findProjectDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, configfile.DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func resolveProjectDir() (string, error) {
	if dirFlag != "" {
		return filepath.Join(dirFlag, configfile.DirName), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	skeinDir, found := findProjectDir(cwd)
	if !found {
		return "", fmt.Errorf("no %s directory found; run 'skein init' first", configfile.DirName)
	}
	return skeinDir, nil
}

// openStore loads project config, builds the template registry, and opens
// the database. Commands that touch the store call this in PreRunE.
func openStore(cmd *cobra.Command, _ []string) error {
	skeinDir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	cfg, err := configfile.Load(skeinDir)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("%s exists but has no config; run 'skein init' first", skeinDir)
	}

	if _, warning := cfg.EffectiveMode(); warning != "" {
		fmt.Fprintln(os.Stderr, warnStyle.Render(warning))
	}

	registry, err := workflow.Load(cfg.Packs())
	if err != nil {
		return err
	}
	store, err = sqlite.New(cmd.Context(), configfile.DatabasePath(skeinDir), registry)
	return err
}

// errorPayload is the machine-readable error shape: a flat object with
// the message and stable code, plus the currently valid transition set
// when a status change was rejected.
type errorPayload struct {
	Error            string                 `json:"error"`
	Code             types.ErrorCode        `json:"code"`
	ValidTransitions []types.TransitionHint `json:"valid_transitions,omitempty"`
	Hint             string                 `json:"hint,omitempty"`
}

func newErrorPayload(err error) errorPayload {
	payload := errorPayload{Error: err.Error(), Code: types.CodeOf(err)}
	var ite *types.InvalidTransitionError
	if errors.As(err, &ite) {
		payload.ValidTransitions = ite.Valid
		payload.Hint = ite.Hint()
	}
	return payload
}

// fatalError prints the error and exits non-zero. JSON mode emits the
// stable error code contract; transition errors carry their hint.
func fatalError(err error) {
	if jsonOutput {
		out, _ := json.MarshalIndent(newErrorPayload(err), "", "  ")
		fmt.Println(string(out))
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
	var ite *types.InvalidTransitionError
	if errors.As(err, &ite) {
		fmt.Fprintln(os.Stderr, dimStyle.Render("  "+ite.Hint()))
	}
	os.Exit(1)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalError(err)
	}
	fmt.Println(string(out))
}
