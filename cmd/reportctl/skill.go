// Package main provides the skill command.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/skill"
	"github.com/reportdash/reportctl/internal/ui"
)

var (
	skillDir   string
	skillForce bool
)

func init() {
	skillInstallCmd.Flags().StringVar(&skillDir, "dir", "", "Skills directory (default ~/.claude/skills)")
	skillInstallCmd.Flags().BoolVar(&skillForce, "force", false, "Overwrite existing skill files")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillInstallCmd)
}

// skillCmd groups agent skill commands.
var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "List, print or install agent skills",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List embedded agent skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput(cmd) {
			var out []map[string]string
			for _, sk := range skill.All() {
				out = append(out, map[string]string{"name": sk.Name, "description": sk.Description})
			}
			return printJSON(out)
		}
		for _, sk := range skill.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", sk.Name, sk.Description)
		}
		return nil
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print an agent skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, ok := skill.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown skill %q (available: %v)", args[0], skill.Names())
		}
		fmt.Fprint(cmd.OutOrStdout(), sk.Content)
		return nil
	},
}

var skillInstallCmd = &cobra.Command{
	Use:   "install [name...]",
	Short: "Install agent skills into a skills directory",
	Long: `Install agent skills. With no names, every skill is installed.

Examples:
  reportctl skill install
  reportctl skill install reportctl-mcp --dir .claude/skills`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := skillDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".claude", "skills")
		}

		selected := skill.All()
		if len(args) > 0 {
			selected = selected[:0]
			for _, name := range args {
				sk, ok := skill.Get(name)
				if !ok {
					return fmt.Errorf("unknown skill %q (available: %v)", name, skill.Names())
				}
				selected = append(selected, sk)
			}
		}

		for _, sk := range selected {
			path, err := skill.Install(dir, sk, skillForce)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintSuccess("Installed %s", path)
		}
		return nil
	},
}
