// Package cli provides shared helpers for the khaothi and khaothid binaries.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagDoc describes one flag in the machine-readable help output.
type FlagDoc struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Usage     string `json:"usage,omitempty"`
	Required  bool   `json:"required"`
}

// CommandDoc describes a command and its visible subcommands.
type CommandDoc struct {
	Name        string       `json:"name"`
	Use         string       `json:"use,omitempty"`
	Short       string       `json:"short,omitempty"`
	Long        string       `json:"long,omitempty"`
	Flags       []FlagDoc    `json:"flags,omitempty"`
	Subcommands []CommandDoc `json:"subcommands,omitempty"`
}

// DescribeCommand builds the help document for cmd and every visible
// subcommand beneath it.
func DescribeCommand(cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Name:  cmd.Name(),
		Use:   cmd.Use,
		Short: cmd.Short,
		Long:  cmd.Long,
	}
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" || f.Name == "help-json" || f.Hidden {
			return
		}
		doc.Flags = append(doc.Flags, describeFlag(f))
	})
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		doc.Subcommands = append(doc.Subcommands, DescribeCommand(sub))
	}
	return doc
}

func describeFlag(f *pflag.Flag) FlagDoc {
	// MarkFlagRequired records the requirement on the flag itself.
	_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
	return FlagDoc{
		Name:      f.Name,
		Shorthand: f.Shorthand,
		Type:      f.Value.Type(),
		Default:   f.DefValue,
		Usage:     f.Usage,
		Required:  required,
	}
}

// AddHelpJSONFlag registers the --help-json flag on the root command.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("help-json", false, "Print the command schema as JSON and exit")
}

// CheckHelpJSON scans os.Args for --help-json and, when present, prints the
// schema for the addressed subcommand and exits. Run it before Execute so the
// flag works even when required arguments are missing.
func CheckHelpJSON(root *cobra.Command) {
	for i, arg := range os.Args {
		if arg != "--help-json" {
			continue
		}
		cmd := resolveCommand(root, os.Args[1:i])
		out, err := json.MarshalIndent(DescribeCommand(cmd), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "help-json: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

func resolveCommand(cmd *cobra.Command, args []string) *cobra.Command {
	for _, arg := range args {
		next := findSubcommand(cmd, arg)
		if next == nil {
			return cmd
		}
		cmd = next
	}
	return cmd
}

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}
