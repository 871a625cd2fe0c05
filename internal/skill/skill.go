// Package skill provides the agent skills embedded in reportctl.
//
// Skills are Markdown instructions that coding agents load to learn how to
// drive reportctl, either through the CLI or through the MCP tools.
package skill

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SkillFileName is the file name within each skill directory.
const SkillFileName = "SKILL.md"

//go:embed reportctl-cli/SKILL.md
var cliContent string

//go:embed reportctl-mcp/SKILL.md
var mcpContent string

// Skill describes one installable agent skill.
type Skill struct {
	Name        string
	Description string
	Content     string
}

var catalog = []Skill{
	{
		Name:        "reportctl-cli",
		Description: "Create, follow and export reports with CLI commands.",
		Content:     cliContent,
	},
	{
		Name:        "reportctl-mcp",
		Description: "Create and generate reports through the MCP tools.",
		Content:     mcpContent,
	},
}

// All returns a copy of all embedded skills in install order.
func All() []Skill {
	out := make([]Skill, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns all skill names in install order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, sk := range catalog {
		names = append(names, sk.Name)
	}
	return names
}

// Get returns one skill by exact name.
func Get(name string) (Skill, bool) {
	name = strings.TrimSpace(name)
	for _, sk := range catalog {
		if sk.Name == name {
			return sk, true
		}
	}
	return Skill{}, false
}

// Install writes a skill to <dir>/<name>/SKILL.md.
//
// Parameters:
//   - dir: The agent's skills directory
//   - sk: The skill to install
//   - force: Overwrite an existing file
//
// Returns:
//   - string: The written path
//   - error: If the file exists and force is false, or on write failure
func Install(dir string, sk Skill, force bool) (string, error) {
	target := filepath.Join(dir, sk.Name, SkillFileName)
	if !force {
		if _, err := os.Stat(target); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", target)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create skill directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(sk.Content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write skill: %w", err)
	}
	return target, nil
}
