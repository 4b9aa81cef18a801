package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for imgshare.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgshare",
		Short: "Find websites that share the same images",
		Long: `imgshare detects duplicate images across websites without downloading them.

For every image it fetches only the first 10240 bytes and stores a compact
fingerprint: a hash of that prefix, a 128-byte boundary sample, the ETag and
any embedded metadata. New fingerprints are matched against the stored ones
as they are built, and the groups command clusters sites by the images they
have in common.

Onion and I2P sites are routed through the configured proxies; each site
always uses the same proxy.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .imgshare in current or home directory)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewGroupsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
