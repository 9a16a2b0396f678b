package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"emdfusion/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			var err error
			if path, err = defaultConfigPath(); err != nil {
				log.Fatalf("Failed to find home directory: %v", err)
			}
		}

		if err := config.CreateDefaultConfigFile(path); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to encode config: %v", err)
		}
		fmt.Print(string(data))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
