package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	configFile string
	jsonOutput bool

	cfg *viper.Viper
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:           "objgraph",
		Short:         "objgraph is an embedded object-graph ORM core",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.GetString(cfgKeyLogLevel))
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./objgraph.yaml)")
	flags.String(cfgKeyLogLevel, defaultLogLevel, "log level: debug, info, warn or error")
	flags.String(cfgKeyModel, "", "YAML model file (default: built-in Company/Employee model)")
	flags.BoolVar(&a.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(newDemoCmd(a))
	root.AddCommand(newSchemaCmd(a))
	return root
}
