// Package cli provides shared CLI utilities for kbchat and kbchatd.
package cli

import (
	"encoding/json"
	"io"

	"github.com/cloo-solutions/kbchat/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

// FlagDoc describes one command flag.
type FlagDoc struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Usage     string `json:"usage,omitempty"`
	Required  bool   `json:"required,omitempty"`
	Inherited bool   `json:"inherited,omitempty"`
}

// CommandDoc is the machine-readable description of a command, its flags,
// the environment it reads and its subcommands.
type CommandDoc struct {
	Name     string          `json:"name"`
	Use      string          `json:"use,omitempty"`
	Short    string          `json:"short,omitempty"`
	Long     string          `json:"long,omitempty"`
	Flags    []FlagDoc       `json:"flags,omitempty"`
	Env      []config.EnvVar `json:"env,omitempty"`
	Commands []CommandDoc    `json:"commands,omitempty"`
}

// Describe documents cmd and every visible subcommand.
func Describe(cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Name:  cmd.Name(),
		Use:   cmd.Use,
		Short: cmd.Short,
		Long:  cmd.Long,
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name != helpJSONFlag && f.Name != "help" {
			doc.Flags = append(doc.Flags, flagDoc(f, false))
		}
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name != helpJSONFlag && f.Name != "help" {
			doc.Flags = append(doc.Flags, flagDoc(f, true))
		}
	})

	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		doc.Commands = append(doc.Commands, Describe(sub))
	}
	return doc
}

func flagDoc(f *pflag.Flag, inherited bool) FlagDoc {
	_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
	return FlagDoc{
		Name:      f.Name,
		Shorthand: f.Shorthand,
		Type:      f.Value.Type(),
		Default:   f.DefValue,
		Usage:     f.Usage,
		Required:  required,
		Inherited: inherited,
	}
}

// AddHelpJSONFlag adds --help-json to root and all its subcommands.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Describe the command, its flags and environment as JSON")
}

// HandleHelpJSON writes the description of the command named by args when
// args contain --help-json, and reports whether it did. It runs before
// Execute so that missing arguments or required flags do not fail first.
func HandleHelpJSON(root *cobra.Command, env []config.EnvVar, args []string, out io.Writer) (bool, error) {
	for i, arg := range args {
		if arg != "--"+helpJSONFlag {
			continue
		}
		doc := Describe(findCommand(root, args[:i]))
		doc.Env = env

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(doc)
	}
	return false, nil
}

func findCommand(cmd *cobra.Command, path []string) *cobra.Command {
	if len(path) == 0 {
		return cmd
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == path[0] || sub.HasAlias(path[0]) {
			return findCommand(sub, path[1:])
		}
	}
	return cmd
}
