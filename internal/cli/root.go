package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "bookscout",
	Short: "Enrich book search results with author metadata",
	Long: `Bookscout filters book records from a search backend by query term and
enriches each hit with author metadata from a remote author service,
running the lookups concurrently under a bounded limit.

Examples:
	# Show available commands and global flags
	bookscout --help

	# Enrich two query terms
	bookscout enrich --terms mystery,romance --search-url http://localhost:9200

	# Print build info
	bookscout version

Output:
	By default, commands write human-readable output to stdout.
	The enrich command supports structured output via --console-format,
	--out and --report (see bookscout enrich --help).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every remote call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
