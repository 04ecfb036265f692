package main

import (
	"fmt"

	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/spf13/cobra"
)

var configSavePath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configSavePath != "" {
			path := config.ExpandPath(configSavePath)
			if err := cfg.Save(path); err != nil {
				return err
			}
			logging.Infof("Configuration written to %s", path)
			fmt.Printf("Configuration written to %s\n", path)
			return nil
		}
		printConfig(cfg)
		return nil
	},
}

func init() {
	configCmd.Flags().StringVar(&configSavePath, "save", "", "Write the effective configuration to a file")
	rootCmd.AddCommand(configCmd)
}

func printConfig(c *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Liveness]")
	fmt.Printf("  Level:             %s\n", c.Liveness.Level)
	fmt.Printf("  EAR Threshold:     %.3f\n", c.Liveness.EARThreshold)
	fmt.Printf("  Yaw Threshold:     %.3f\n", c.Liveness.YawThreshold)
	fmt.Printf("  Motion Threshold:  %.2f\n", c.Liveness.MotionThreshold)
	fmt.Printf("  Window:            %d ms\n", c.Liveness.WindowMs)
	fmt.Printf("  Min Frames:        %d\n", c.Liveness.MinFrames)
	fmt.Printf("  Blink Cycle:       %t\n", c.Liveness.ToEngine().RequireBlinkCycle)
	fmt.Println()
	fmt.Println("[Gate]")
	fmt.Printf("  Challenge:         %s\n", c.Gate.Challenge)
	fmt.Printf("  Max Attempts:      %d\n", c.Gate.MaxAttempts)
	fmt.Printf("  Timeout:           %d seconds\n", c.Gate.Timeout)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:          %s\n", c.Storage.DataDir)
	fmt.Printf("  Encryption:        %t\n", c.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Audit]")
	fmt.Printf("  Enabled:           %t\n", c.Audit.Enabled)
	fmt.Printf("  Path:              %s\n", c.Audit.Path)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:             %s\n", c.Logging.Level)
	fmt.Printf("  Format:            %s\n", c.Logging.Format)
	fmt.Printf("  File:              %s\n", c.Logging.File)
	fmt.Println()
	fmt.Println("Configuration Locations:")
	fmt.Println("  System: /etc/facegate/facegate.yaml")
	fmt.Println("  User:   ~/.config/facegate/facegate.yaml")
	fmt.Printf("  Environment overrides use the %s_ prefix, e.g. %s_LIVENESS_EAR_THRESHOLD\n", config.EnvPrefix, config.EnvPrefix)
}
