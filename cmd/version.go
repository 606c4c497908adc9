package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is stamped by release builds:
//
//	go build -ldflags="-X github.com/jacklau/clusterkit/cmd.version=v0.3.0"
//
// Binaries installed with go install fall back to the module version.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the clusterkit version and build platform",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clusterkit %s (%s %s/%s)\n",
			buildVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildVersion returns the stamped version, else the module version recorded
// in the binary.
func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return version
}
