// Package config layers a config file and environment variables under the flags of a cobra command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options configures the loading of config parameters for a command.
type Options struct {
	// FilePath is the path to the config file to be loaded, including the file name and extension.
	// The file may be any of the types supported by Viper (such as .yaml or .json). Empty means no file.
	FilePath string

	// EnvPrefix is added to environment variables that override config file settings. For instance, setting it to
	// "MSGSCAN" makes --solanaRPC read MSGSCAN_SOLANARPC.
	EnvPrefix string

	// EnvAliases maps flag names to additional environment variables read without the prefix.
	EnvAliases map[string]string
}

// InitFileConfig initializes configuration according to the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Cobra default values
func InitFileConfig(cmd *cobra.Command, options Options) error {
	v := viper.New()

	if options.FilePath != "" {
		v.SetConfigFile(options.FilePath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", options.FilePath, err)
		}
	}

	v.SetEnvPrefix(options.EnvPrefix)
	v.AutomaticEnv()

	for name, env := range options.EnvAliases {
		if err := v.BindEnv(name, env); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", name, env, err)
		}
	}

	return bindFlags(cmd, v)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if setErr := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); setErr != nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, setErr)
		}
	})
	return err
}
