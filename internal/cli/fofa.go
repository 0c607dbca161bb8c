package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

// fofaFlags are shared by fofa and all.
type fofaFlags struct {
	key   string
	email string
	query string
	pages int
}

func (f *fofaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", "", "FOFA API key (overrides config and FOFA_API_KEY)")
	cmd.Flags().StringVar(&f.email, "email", "", "FOFA account email")
	cmd.Flags().StringVar(&f.query, "query", "", `FOFA query, {domain} is substituted (default: domain="{domain}" || cert="{domain}")`)
	cmd.Flags().IntVar(&f.pages, "pages", 0, "Maximum result pages (default: 3)")
}

func (f *fofaFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.key != "" {
		cfg.Fofa.APIKey = f.key
	}
	if f.email != "" {
		cfg.Fofa.Email = f.email
	}
	if f.query != "" {
		cfg.Fofa.Query = f.query
	}
	if cmd.Flags().Changed("pages") {
		cfg.Fofa.MaxPages = f.pages
	}
}

var fofaOpts fofaFlags

var fofaCmd = &cobra.Command{
	Use:   "fofa <domain>",
	Short: "Collect subdomains indexed by FOFA",
	Long: `Pages through the FOFA search API and writes fofa_subdomain.txt.
Requires an API key from the config file, FOFA_API_KEY or --key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply := func(cfg *config.Config) error {
			fofaOpts.apply(cmd, cfg)
			return nil
		}
		return runPipeline(cmd, args[0], pipeline.Options{Mode: pipeline.ModeFofa}, apply)
	},
}

func init() {
	fofaOpts.register(fofaCmd)
}
