/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notargets/globemesh/InputParameters"
)

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "globemesh",
	Short: "Cubed sphere mesh topology and domain decomposition for the whole Earth",
	Long: `
Plans the radial layering of a global cubed sphere mesh, assembles six chunks
and a central cube from a doubling superbrick template, cuts the result into
process slices and checks that every pair of slices agrees on what it shares.

Parameters come from a YAML file (--config, or $HOME/.globemesh.yaml) laid over
the built in defaults. Command line flags override the file.

globemesh mesh --nex 32 --nproc 2`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if logger, err = config.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.globemesh.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	def := InputParameters.NewDefaultParameters()
	rootCmd.PersistentFlags().Int("nex", def.NEX, "surface elements along each chunk side")
	rootCmd.PersistentFlags().Int("nproc", def.NProcXi, "slices along each side of a chunk")
	rootCmd.PersistentFlags().Int("chunks", def.NChunks, "number of chunks to mesh: 1, 2, 3 or 6")
	rootCmd.PersistentFlags().String("projection", def.Projection, "equal-angle or gnomonic")
	for key, flag := range map[string]string{
		"NEX": "nex", "NProcXi": "nproc", "NProcEta": "nproc", "NChunks": "chunks", "Projection": "projection",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".globemesh" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".globemesh")
	}
	viper.SetEnvPrefix("GLOBEMESH")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "unable to read config file:", err)
		os.Exit(1)
	}
}

// loadParameters lays the merged viper settings over the defaults and
// validates the result.
func loadParameters() (mp *InputParameters.MeshParameters, err error) {
	var data []byte
	if data, err = yaml.Marshal(viper.AllSettings()); err != nil {
		return
	}
	mp = InputParameters.NewDefaultParameters()
	if err = mp.Parse(data); err != nil {
		return nil, err
	}
	if err = mp.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("parameters loaded", zap.String("config", viper.ConfigFileUsed()),
		zap.Int("nex", mp.NEX), zap.Int("nproc", mp.NProcXi), zap.Int("chunks", mp.NChunks))
	return
}
