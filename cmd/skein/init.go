package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skeinhq/skein/internal/configfile"
	"github.com/skeinhq/skein/internal/storage/sqlite"
	"github.com/skeinhq/skein/internal/workflow"
)

var (
	initPrefix string
	initName   string
	initPacks  []string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a skein project in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := dirFlag
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			base = cwd
		}
		skeinDir := filepath.Join(base, configfile.DirName)

		if existing, err := configfile.Load(skeinDir); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("project already initialized (prefix %q)", existing.Prefix)
		}

		prefix := strings.ToLower(strings.TrimSpace(initPrefix))
		if prefix == "" {
			prefix = strings.ToLower(filepath.Base(base))
			if len(prefix) > 4 {
				prefix = prefix[:4]
			}
		}
		if prefix == "" || strings.ContainsAny(prefix, " -/") {
			return fmt.Errorf("invalid prefix %q: use a short lowercase token without separators", prefix)
		}

		cfg := configfile.Default(prefix, initName, 1)
		if cmd.Flags().Changed("packs") {
			packs := append([]string{}, initPacks...)
			cfg.EnabledPacks = &packs
		}

		// Validate the pack selection before committing anything to disk.
		registry, err := workflow.Load(cfg.Packs())
		if err != nil {
			return err
		}
		if err := cfg.Save(skeinDir); err != nil {
			return err
		}

		s, err := sqlite.New(cmd.Context(), configfile.DatabasePath(skeinDir), registry)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SetConfig(cmd.Context(), "issue_prefix", prefix); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]any{
				"initialized": true,
				"prefix":      prefix,
				"dir":         skeinDir,
				"templates":   registry.Names(),
			})
			return nil
		}
		fmt.Println(okStyle.Render("✓") + " initialized " + skeinDir)
		fmt.Println(dimStyle.Render("  prefix: ") + prefix)
		fmt.Println(dimStyle.Render("  templates: ") + strings.Join(registry.Names(), ", "))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initPrefix, "prefix", "", "issue ID prefix (default: directory name, truncated)")
	initCmd.Flags().StringVar(&initName, "name", "", "human-readable project name")
	initCmd.Flags().StringSliceVar(&initPacks, "packs", nil, "template packs to enable beyond core (e.g. agile,ops)")
	rootCmd.AddCommand(initCmd)
}
