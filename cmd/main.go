package main

import (
	"fmt"
	"os"

	_ "robot_control/docs"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// @title        Robot Control Admin API
// @version      1.0
// @description  Read-only status, command journal and metrics for the robot.
// @BasePath     /

var (
	cfgFile       string
	serviceAction string
)

var rootCmd = &cobra.Command{
	Use:   "robotd",
	Short: "Serve the robot command API",
	Long: `Runs the HTTP command dispatcher that drives the robot pin,
plus the admin API. Can be installed as a system service.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcConfig := &service.Config{
			Name:        "robotd",
			DisplayName: "Robot Control",
			Description: "HTTP command dispatcher for the robot",
		}
		if cfgFile != "" {
			svcConfig.Arguments = []string{"--config", cfgFile}
		}

		prg := &program{cfgFile: cfgFile}
		s, err := service.New(prg, svcConfig)
		if err != nil {
			return err
		}

		if serviceAction != "" {
			if err := service.Control(s, serviceAction); err != nil {
				return fmt.Errorf("failed to %s service: %w", serviceAction, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return nil
		}

		// Blocks until the service manager or SIGINT/SIGTERM stops us.
		return s.Run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop, restart")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
