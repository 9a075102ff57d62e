// ABOUTME: Level commands: list levels and manage default and per-domain levels
// ABOUTME: Every change is validated against the level catalog before it is stored

package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/ui"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Manage privacy levels",
	Long: `Manage privacy levels.

Commands:
  list     - Show levels and per-domain overrides
  default  - Set the level for domains without an override
  set      - Set the level for one domain
  unset    - Remove a domain override
  show     - Show which level applies to a URL

Examples:
  locguard level list
  locguard level default high
  locguard level set maps.example.com real
  locguard level unset maps.example.com`,
}

var levelListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List levels and domain overrides",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Load(commandContext(cmd))
		if err != nil {
			return err
		}
		catalog, err := level.ValidateSettings(st)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, color.New(color.Bold).Sprint("Levels"))
		for _, name := range catalog.Names() {
			l, err := catalog.Lookup(name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, ui.FormatLevel(l, name == st.DefaultLevel))
		}

		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, color.New(color.Bold).Sprint("Domains"))
		if len(st.DomainLevel) == 0 {
			_, _ = fmt.Fprintln(out, color.New(color.Faint).Sprint("  (none)"))
			return nil
		}
		domains := make([]string, 0, len(st.DomainLevel))
		for d := range st.DomainLevel {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			_, _ = fmt.Fprintln(out, ui.FormatDomainLevel(d, st.DomainLevel[d]))
		}
		return nil
	},
}

var levelDefaultCmd = &cobra.Command{
	Use:   "default <level>",
	Short: "Set the default level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.svc.SetDefaultLevel(commandContext(cmd), args[0]); err != nil {
			return err
		}
		color.Green("Default level set to %s", args[0])
		return nil
	},
}

var levelSetCmd = &cobra.Command{
	Use:   "set <domain> <level>",
	Short: "Set the level for a domain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.svc.SetDomainLevel(commandContext(cmd), args[0], args[1]); err != nil {
			return err
		}
		color.Green("%s now uses level %s", policy.ExtractDomain(args[0]), args[1])
		return nil
	},
}

var levelUnsetCmd = &cobra.Command{
	Use:     "unset <domain>",
	Aliases: []string{"rm"},
	Short:   "Remove the level override for a domain",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.svc.ClearDomainLevel(commandContext(cmd), args[0]); err != nil {
			return err
		}
		color.Green("%s now uses the default level", policy.ExtractDomain(args[0]))
		return nil
	},
}

var levelShowCmd = &cobra.Command{
	Use:   "show <url>",
	Short: "Show the level that applies to a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		call, err := callFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.svc.Resolve(commandContext(cmd), call)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", color.GreenString(res.Origin), ui.FormatLevel(res.Level, false))
		return nil
	},
}

func init() {
	levelShowCmd.Flags().Bool("frame", false, "the URL is loaded in an embedded frame")
	levelShowCmd.Flags().String("top-url", "", "URL of the top-level page")
	levelShowCmd.Flags().String("tab", "", "tab identifier")

	levelCmd.AddCommand(levelListCmd)
	levelCmd.AddCommand(levelDefaultCmd)
	levelCmd.AddCommand(levelSetCmd)
	levelCmd.AddCommand(levelUnsetCmd)
	levelCmd.AddCommand(levelShowCmd)

	rootCmd.AddCommand(levelCmd)
}
