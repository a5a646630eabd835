// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is a cobra root command whose persistent flags are bound into
// viper so the same tuning knobs can come from a flag, an environment
// variable, or a nanolisp.yaml file.
var rootCmd = &cobra.Command{
	Use:   "nanolisp",
	Short: "nanolisp — an embeddable Lisp interpreter for constrained hosts",
	Long: `nanolisp is a tagged-value, mark-sweep, cooperatively-scheduled Lisp
interpreter core. This binary is a demo host embedding it:

  nanolisp run file.nl            Load and evaluate a source file
  nanolisp run -e '(+ 1 2)'       Evaluate an expression
  nanolisp run --interactive      Open an operator shell against a runtime
  nanolisp describe                List registered fundamentals/extensions
  nanolisp image save out.img     Snapshot a runtime to a persisted image
  nanolisp image boot in.img      Boot a runtime from a persisted image`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./nanolisp.yaml)")
	rootCmd.PersistentFlags().Int("heap-cells", 4096, "cons arena cell count")
	rootCmd.PersistentFlags().Int("aux-words", 4096, "auxiliary memory word count")
	rootCmd.PersistentFlags().Int("quantum", 1000, "scheduler reduction quantum")
	rootCmd.PersistentFlags().Bool("trace", false, "install an OpenTelemetry tracer that writes spans to stderr")
	_ = viper.BindPFlag("heap_cells", rootCmd.PersistentFlags().Lookup("heap-cells"))
	_ = viper.BindPFlag("aux_words", rootCmd.PersistentFlags().Lookup("aux-words"))
	_ = viper.BindPFlag("quantum", rootCmd.PersistentFlags().Lookup("quantum"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("nanolisp")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("nanolisp")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absent config file is not an error
}
