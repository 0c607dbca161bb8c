package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rootsploit/deepx/internal/config"
)

var (
	configInitForce bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
		Long: `Manage the deepx configuration.

deepx reads ~/.deepx/config.yaml (or --config), then applies FOFA_API_KEY,
FOFA_EMAIL, OTX_API_KEY, DEEPX_CACHE_DIR and DISABLE_CACHE from the
environment, then command-line flags.

Commands:
  show  - Display the effective configuration (keys masked)
  init  - Create a template config file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a template config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
}

func configPath() string {
	if flags.configPath != "" {
		return flags.configPath
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	data, err := yaml.Marshal(e.cfg.Masked())
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	if e.cfg.NoColor {
		cyan.DisableColor()
		gray.DisableColor()
	}
	out := cmd.OutOrStdout()
	cyan.Fprintln(out, "\n[+] deepx Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	gray.Fprintf(out, "\nEdit configuration: %s\n", configPath())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)
	out := cmd.OutOrStdout()

	_, err := os.Stat(path)
	switch {
	case err == nil && !configInitForce:
		yellow.Fprintf(out, "    Config already exists: %s (use --force to overwrite)\n", path)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	green.Fprintf(out, "    Created: %s\n", path)
	gray.Fprintln(out, "    Add your FOFA and OTX keys, or export FOFA_API_KEY / OTX_API_KEY.")
	return nil
}
