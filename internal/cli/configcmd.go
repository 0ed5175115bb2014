package cli

import (
	"fmt"
	"os"

	"github.com/lu-zhengda/netpulse/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := resolveConfigPath()
		if cfgPath == "" {
			return fmt.Errorf("failed to determine config path")
		}

		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}

		_, warnings := config.LoadAndValidate(data)
		printWarnings(cfgPath, warnings)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := resolveConfigPath()
		if cfgPath == "" {
			return fmt.Errorf("failed to determine config path")
		}
		fmt.Println(cfgPath)
		return nil
	},
}

func printWarnings(cfgPath string, warnings []config.Warning) {
	if len(warnings) == 0 {
		fmt.Printf("Config OK (%s)\n", cfgPath)
		return
	}

	fmt.Printf("Found %d warning(s) in %s:\n", len(warnings), cfgPath)
	for _, w := range warnings {
		if w.Field != "" {
			fmt.Printf("  [%s] %s\n", w.Field, w.Message)
		} else {
			fmt.Printf("  %s\n", w.Message)
		}
		if w.Suggestion != "" {
			fmt.Printf("    suggestion: %s\n", w.Suggestion)
		}
	}
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
}
