// poolctl es la CLI de operación de cipherpool: genera secretos, firma tokens
// y envelopes de prueba, sella/abre payloads y llama a la API como bot/admin.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "CLI de operación para cipherpool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGenMasterKeyCmd(),
		newServiceTokenCmd(),
		newSignEnvelopeCmd(),
		newKeypairCmd(),
		newSealCmd(),
		newOpenCmd(),
		newMigrateCmd(),
		newAPICmd(),
	)
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationOr(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}
