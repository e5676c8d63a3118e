// Command stegano hides, reveals and signs identifiers in images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/absfs/absfs"
	"github.com/fieldfiller/stegano/internal/config"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// envPrefix maps -flag-name to STEGANO_FLAG_NAME for flags that opt in
const envPrefix = "STEGANO"

type app struct {
	fs        absfs.FileSystem
	stdout    io.Writer
	lookupEnv func(string) (string, bool)

	configPath string
}

func newApp() *app {
	return &app{
		fs:        &osFS{},
		stdout:    os.Stdout,
		lookupEnv: os.LookupEnv,
	}
}

// config loads the YAML file when one is given and applies the environment
func (a *app) config() (config.Config, error) {
	c := config.Default()
	if a.configPath != "" {
		var err error
		if c, err = config.Load(a.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := c.ApplyEnv(a.lookupEnv); err != nil {
		return config.Config{}, err
	}
	return c, nil
}

func (a *app) command() *ffcli.Command {
	rootFlags := flag.NewFlagSet("stegano", flag.ContinueOnError)
	rootFlags.StringVar(&a.configPath, "config", "", "YAML config file")

	return &ffcli.Command{
		Name:       "stegano",
		ShortUsage: "stegano [-config file] <subcommand> [flags] [args]",
		FlagSet:    rootFlags,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Subcommands: []*ffcli.Command{
			a.keygenCommand(),
			a.hideCommand(),
			a.revealCommand(),
			a.capacityCommand(),
			a.encryptCommand(),
			a.decryptCommand(),
			a.useraddCommand(),
			a.signCommand(),
			a.verifyCommand(),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().command().ParseAndRun(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
