package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syssam/objgraph/schema"
)

const (
	configFileName = "objgraph"
	configFileType = "yaml"
	envPrefix      = "OBJGRAPH"

	cfgKeyLogLevel = "log-level"
	cfgKeyModel    = "model"

	defaultLogLevel = "info"
)

// demoModel is used when no model file is configured.
const demoModel = `entities:
  - name: Company
    attributes:
      - {name: name, type: string, indexed: true}
  - name: Employee
    attributes:
      - {name: name, type: string, indexed: true}
      - {name: age, type: int, optional: true}
relationships:
  - {one: Company, many: Employee, oneName: company, manyName: employees, deleteRule: cascade}
`

// loadConfig resolves settings from flags, OBJGRAPH_* environment
// variables and objgraph.yaml, in that order of precedence. A missing
// objgraph.yaml in the working directory is not an error; a missing file
// named by --config is.
func loadConfig(configFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{cfgKeyLogLevel, cfgKeyModel} {
		if f := flags.Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// newLogger builds a development logger for the debug level and a
// production logger otherwise.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if lvl.Level() == zap.DebugLevel {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stderr"}
		return z.Build()
	}
	z := zap.NewProductionConfig()
	z.Level = lvl
	return z.Build()
}

// loadModel reads the model file, or the built-in demo model when path is
// empty.
func loadModel(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.LoadYAML(strings.NewReader(demoModel))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	sc, err := schema.LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return sc, nil
}
