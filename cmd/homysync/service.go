package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// serviceStopTimeout bounds how long Stop waits for the daemon to exit.
const serviceStopTimeout = 20 * time.Second

// serviceActions are the accepted "homysync service" arguments.
var serviceActions = []string{"install", "uninstall", "start", "stop", "run"}

// program adapts the daemon to the service manager.
type program struct {
	opts   *options
	cancel context.CancelFunc
	done   chan error
}

// Start must not block; the daemon runs in its own goroutine.
func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- runDaemon(ctx, p.opts)
	}()
	return nil
}

// Stop cancels the daemon and waits for it to finish shutting down.
func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(serviceStopTimeout):
		return errors.New("timed out waiting for homysync to stop")
	}
}

// serviceConfig describes the installed service. The config path is made
// absolute because service managers start in another directory.
func serviceConfig(opts *options) (*service.Config, error) {
	path, err := filepath.Abs(opts.path())
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	return &service.Config{
		Name:        "homysync",
		DisplayName: "HomySync",
		Description: "Keeps a live local copy of HomyTech device state",
		Arguments:   []string{"service", "run", "--config", path},
	}, nil
}

func newServiceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|run>",
		Short:     "Manage HomySync as a system service",
		Long:      `Installs, removes, starts or stops the system service. "run" is what the service manager invokes.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: serviceActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig, err := serviceConfig(opts)
			if err != nil {
				return err
			}
			prg := &program{opts: opts}
			s, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}

			action := args[0]
			if action == "run" {
				return s.Run()
			}
			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("failed to %s service: %w", action, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Service action '%s' completed successfully.\n", action)
			return err
		},
	}
}
