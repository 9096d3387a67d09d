// Package cli implements robotctl, a command-line remote for the robot.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"robot_control/internal/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = ".robotctl"
	envPrefix  = "ROBOTCTL"

	defaultBaseURL  = "http://10.42.0.1"
	defaultAdminURL = "http://10.42.0.1:8081"
)

// app holds flag values and the viper instance for one invocation.
type app struct {
	v *viper.Viper

	cfgFile    string
	jsonOutput bool
	durationMs int
	velocity   int
	eventType  string
	cmdDur     int

	// newClient is swapped in tests.
	newClient func(client.Config) *client.RobotClient
}

// NewRootCmd builds the robotctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), newClient: client.New}

	root := &cobra.Command{
		Use:   "robotctl",
		Short: "Send movement commands to the robot",
		Long: `Drive the robot over its HTTP API and inspect its state
through the admin API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.robotctl.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output results as JSON")
	root.PersistentFlags().String("base-url", defaultBaseURL, "robot API base URL")
	root.PersistentFlags().String("admin-url", defaultAdminURL, "admin API base URL")
	root.PersistentFlags().Duration("timeout", 5*time.Second, "request timeout")
	root.PersistentFlags().Bool("dry-run", false, "print commands instead of sending them to the robot")
	_ = a.v.BindPFlag("base_url", root.PersistentFlags().Lookup("base-url"))
	_ = a.v.BindPFlag("admin_url", root.PersistentFlags().Lookup("admin-url"))
	_ = a.v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))
	_ = a.v.BindPFlag("dry_run", root.PersistentFlags().Lookup("dry-run"))

	root.AddCommand(a.sendCmd())
	for _, m := range movements {
		root.AddCommand(a.movementCmd(m))
	}
	root.AddCommand(a.steerCmd())
	root.AddCommand(a.stateCmd())
	root.AddCommand(a.eventsCmd())
	return root
}

// Execute runs robotctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// initConfig reads the config file and ROBOTCTL_* variables. A missing
// default config file is fine; flags and env still apply.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(configName)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && a.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) client() *client.RobotClient {
	return a.newClient(client.Config{
		BaseURL:  strings.TrimRight(a.v.GetString("base_url"), "/"),
		AdminURL: strings.TrimRight(a.v.GetString("admin_url"), "/"),
		Timeout:  a.v.GetDuration("timeout"),
		DryRun:   a.v.GetBool("dry_run"),
	})
}
