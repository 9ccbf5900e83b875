// Command coachctl runs administrative tasks against the CoachShare store:
// reconciliation procedures and admin account creation.
package main

import (
	"coachshare/backend/internal/bootstrap"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "CoachShare administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(newReconcileCmd())
	root.AddCommand(newUserCmd())
	return root
}

// withContainer builds the container for one command and releases it afterwards.
func withContainer(fn func(inj *do.Injector) error) error {
	inj := bootstrap.BuildContainer(configPath)
	err := fn(inj)
	if shutdownErr := inj.Shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
