package main

import (
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// serviceCmd manages the bridge as a system service (systemd, launchd,
// Windows service) through kardianos/service.
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|restart|run]",
		Short:     "Manage the bridge as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return runServiceAction(args[0], cfgPath)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// program adapts the wired application to the service manager's lifecycle.
type program struct {
	cfgPath string
	app     runner
	errCh   chan error
}

func (p *program) Start(_ service.Service) error {
	application, _, err := loadAndBuild(p.cfgPath)
	if err != nil {
		return err
	}
	p.app = application
	p.errCh = make(chan error, 1)
	go func() { p.errCh <- p.app.Run() }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.app == nil {
		return nil
	}
	p.app.Stop()
	return nil
}

func runServiceAction(action, cfgPath string) error {
	svcConfig := &service.Config{
		Name:        "ircgram",
		DisplayName: "ircgram bridge",
		Description: "IRC ↔ Telegram relay bridge",
		Arguments:   serviceArguments(cfgPath),
	}

	prg := &program{cfgPath: cfgPath}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	if action == "run" {
		return svc.Run()
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s: %w", action, err)
	}
	fmt.Printf("Service %s: done\n", action)
	return nil
}

// serviceArguments builds the argv the service manager launches us with.
// The config path is made absolute; the daemon's working directory differs
// from the shell the install ran in.
func serviceArguments(cfgPath string) []string {
	args := []string{"service", "run"}
	if cfgPath != "" {
		if abs, err := filepath.Abs(cfgPath); err == nil {
			cfgPath = abs
		}
		args = append(args, "--config", cfgPath)
	} else if resolved, err := resolveConfigPath(); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			args = append(args, "--config", abs)
		}
	}
	return args
}
