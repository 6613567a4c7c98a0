package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates"},
	Short:   "Inspect the loaded workflow templates",
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List loaded templates and packs",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := store.Registry()
		if jsonOutput {
			printJSON(map[string]any{
				"packs":     registry.Packs(),
				"templates": registry.Names(),
			})
			return nil
		}
		fmt.Println(dimStyle.Render("packs: ") + strings.Join(registry.Packs(), ", "))
		for _, name := range registry.Names() {
			fmt.Println("  " + name)
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:     "show <name>",
	Short:   "Show a template's states, transitions and fields",
	Args:    cobra.ExactArgs(1),
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := store.Registry().Get(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(tpl)
			return nil
		}
		fmt.Println(headerStyle.Render(tpl.Name) +
			dimStyle.Render(fmt.Sprintf("  (%s enforcement, initial %s)", tpl.Enforcement, tpl.Initial)))
		fmt.Println("states:")
		for _, s := range tpl.States {
			fmt.Printf("  %-14s %s\n", s.Name, dimStyle.Render(string(s.Category)))
		}
		if len(tpl.Transitions) > 0 {
			fmt.Println("transitions:")
			for _, tr := range tpl.Transitions {
				line := fmt.Sprintf("  %s -> %s", tr.From, tr.To)
				if len(tr.RequiredFields) > 0 {
					line += dimStyle.Render("  requires " + strings.Join(tr.RequiredFields, ", "))
				}
				fmt.Println(line)
			}
		}
		if len(tpl.Fields) > 0 {
			fmt.Println("fields:")
			for _, f := range tpl.Fields {
				line := fmt.Sprintf("  %-18s %s", f.Name, f.Type)
				if len(f.Options) > 0 {
					line += dimStyle.Render("  one of " + strings.Join(f.Options, "|"))
				}
				if f.Pattern != "" {
					line += dimStyle.Render("  pattern " + f.Pattern)
				}
				if f.Unique {
					line += dimStyle.Render("  unique")
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	rootCmd.AddCommand(templateCmd)
}
