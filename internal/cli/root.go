package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lu-zhengda/netpulse/internal/clipboard"
	"github.com/lu-zhengda/netpulse/internal/commands"
	"github.com/lu-zhengda/netpulse/internal/config"
	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/lu-zhengda/netpulse/internal/theme"
	"github.com/lu-zhengda/netpulse/internal/tui"
	"github.com/spf13/cobra"
)

var (
	jsonFlag   bool
	configPath string
	appConfig  *config.Config

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "netpulse",
	Short:   "A terminal dashboard for local network scans",
	Long:    "netpulse asks a discovery backend to sweep the local network and lists the devices it finds.\nLaunch without subcommands for interactive TUI mode.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		for _, w := range appConfig.Validate() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}
		return runDashboard(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("netpulse %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/netpulse/config.yaml)")
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mockBackendCmd)
}

// runDashboard wires the orchestrator to the TUI and blocks until the user
// quits. A scan still in flight is canceled on the way out.
func runDashboard(cmd *cobra.Command) error {
	a, err := newApp(appConfig, resolveConfigPath())
	if err != nil {
		return err
	}
	defer a.Close()

	mode, err := theme.ParseMode(appConfig.UI.Theme)
	if err != nil {
		mode = theme.Dark
	}
	th := theme.NewManager(mode)
	th.OnChange(a.persistTheme)

	orch := scan.New(a.client,
		scan.WithLogger(a.log),
		scan.WithOnComplete(a.recordScan),
		scan.WithInitialBackendOnline(a.probe(cmd.Context())),
	)
	defer orch.Close()

	states, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	gw := commands.New(orch, clipboard.New(os.Stderr), th)
	p := tea.NewProgram(tui.New(gw, states, a.client.BaseURL()), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// resolveConfigPath returns the --config value or the default location, or
// "" when neither is known.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	p, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return p
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}
