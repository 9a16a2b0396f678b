package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"emdfusion/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "emdfusion",
	Short: "Fixed-point EMD fusion of two grayscale images",
	Long: `Fuses two co-registered 8-bit grayscale images into one, favoring in each
neighborhood the source with more local detail. Detail is measured as the
local variance of a fixed-point EMD residual.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.Ltime)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/"+config.DefaultFileName+")")
}

// defaultConfigPath returns $HOME/.emdfusion.yaml
func defaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, config.DefaultFileName), nil
}

func initConfig() {
	path := cfgFile
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			log.Fatalf("Failed to find home directory: %v", err)
		}
	} else if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}

	loaded, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg = loaded

	if _, err := os.Stat(path); err == nil && cfg.Output.Verbose {
		log.Println("Using config file:", path)
	}
}
