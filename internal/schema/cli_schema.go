// Package schema describes the reportctl command tree in machine-readable
// form, so agents and scripts can discover commands and flags without
// scraping help output.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CLISchema is the complete command tree.
type CLISchema struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	Summary   string        `json:"summary"`
	Global    []FlagInfo    `json:"global_flags"`
	Commands  []CommandInfo `json:"commands"`
	Workflows []Workflow    `json:"workflows"`
}

// CommandInfo describes one command.
type CommandInfo struct {
	Path     string        `json:"path"`
	Summary  string        `json:"summary"`
	Usage    string        `json:"usage"`
	Args     bool          `json:"takes_args"`
	Flags    []FlagInfo    `json:"flags,omitempty"`
	Examples []string      `json:"examples,omitempty"`
	Children []CommandInfo `json:"subcommands,omitempty"`
}

// FlagInfo describes one flag.
type FlagInfo struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage"`
}

// Workflow is a common sequence of commands.
type Workflow struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

// GetCLISchema walks rootCmd and describes every visible command.
//
// Parameters:
//   - rootCmd: The root Cobra command
//   - version: CLI version string
//
// Returns:
//   - *CLISchema: The command tree
func GetCLISchema(rootCmd *cobra.Command, version string) *CLISchema {
	return &CLISchema{
		Name:      rootCmd.Name(),
		Version:   version,
		Summary:   rootCmd.Short,
		Global:    describeFlags(rootCmd.PersistentFlags()),
		Commands:  describeChildren(rootCmd),
		Workflows: workflows,
	}
}

// visible skips hidden commands and the ones cobra generates.
func visible(c *cobra.Command) bool {
	switch c.Name() {
	case "help", "completion":
		return false
	}
	return !c.Hidden
}

func describeChildren(parent *cobra.Command) []CommandInfo {
	var out []CommandInfo
	for _, c := range parent.Commands() {
		if visible(c) {
			out = append(out, describeCommand(c))
		}
	}
	return out
}

func describeCommand(c *cobra.Command) CommandInfo {
	// CommandPath includes the root name; the schema paths do not.
	_, path, _ := strings.Cut(c.CommandPath(), " ")
	return CommandInfo{
		Path:     path,
		Summary:  c.Short,
		Usage:    c.UseLine(),
		Args:     strings.ContainsAny(c.Use, "<["),
		Flags:    describeFlags(c.LocalNonPersistentFlags()),
		Examples: examplesFrom(c.Long),
		Children: describeChildren(c),
	}
}

func describeFlags(fs *pflag.FlagSet) []FlagInfo {
	var out []FlagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		out = append(out, FlagInfo{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		})
	})
	return out
}

// examplesFrom returns the "reportctl ..." lines that follow the Examples:
// heading of a command's long help, up to the first other line.
func examplesFrom(long string) []string {
	_, rest, ok := strings.Cut(long, "Examples:")
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "", strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "reportctl "):
			out = append(out, line)
		default:
			return out
		}
	}
	return out
}

var workflows = []Workflow{
	{
		Title: "Create a report and wait for its results",
		Steps: []string{`reportctl create "weekly signups by country" --watch`},
	},
	{
		Title: "Re-run a failed report",
		Steps: []string{"reportctl status <id>", "reportctl retry <id>"},
	},
	{
		Title: "Export results",
		Steps: []string{"reportctl results <id> --format csv > report.csv", "reportctl results <id> --save"},
	},
	{
		Title: "Try everything locally",
		Steps: []string{"reportctl dev-server", "reportctl --dev watch <id>"},
	},
}

// ToJSON encodes the schema, indented when indent is set.
func ToJSON(schema *CLISchema, indent bool) (string, error) {
	marshal := json.Marshal
	if indent {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}
	data, err := marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(data), nil
}

// ToMarkdown renders the schema as a command reference.
func ToMarkdown(schema *CLISchema) string {
	md := &markdown{}
	md.linef("# %s CLI Reference", schema.Name)
	md.linef("**Version:** %s", schema.Version)
	if schema.Summary != "" {
		md.linef("%s", schema.Summary)
	}

	md.linef("## Global Flags")
	md.flags(schema.Global)

	md.linef("## Commands")
	for _, c := range schema.Commands {
		md.command(c, 3)
	}

	md.linef("## Common Workflows")
	for _, w := range schema.Workflows {
		md.linef("### %s", w.Title)
		md.code(w.Steps)
	}
	return md.String()
}

// markdown accumulates paragraphs separated by blank lines.
type markdown struct {
	strings.Builder
}

func (m *markdown) linef(format string, args ...any) {
	fmt.Fprintf(m, format+"\n\n", args...)
}

func (m *markdown) code(lines []string) {
	m.WriteString("```bash\n" + strings.Join(lines, "\n") + "\n```\n\n")
}

func (m *markdown) flags(flags []FlagInfo) {
	m.WriteString("| Flag | Type | Default | Description |\n|------|------|---------|-------------|\n")
	for _, f := range flags {
		label := "--" + f.Name
		if f.Short != "" {
			label = "-" + f.Short + ", " + label
		}
		fmt.Fprintf(m, "| `%s` | %s | %s | %s |\n", label, f.Type, f.Default, f.Usage)
	}
	m.WriteString("\n")
}

func (m *markdown) command(c CommandInfo, level int) {
	m.linef("%s `%s`", strings.Repeat("#", level), c.Path)
	m.linef("%s", c.Summary)
	m.linef("**Usage:** `%s`", c.Usage)
	if len(c.Flags) > 0 {
		m.linef("**Flags:**")
		m.flags(c.Flags)
	}
	if len(c.Examples) > 0 {
		m.linef("**Examples:**")
		m.code(c.Examples)
	}
	for _, child := range c.Children {
		m.command(child, level+1)
	}
}
