// Package cli implements the nitrate command-line interface.
package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/logging"
	"github.com/mesh-intelligence/nitrate/internal/paths"
	"github.com/mesh-intelligence/nitrate/internal/printer"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is the release stamped in by the build.
var Version = "dev"

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
	as        string
}

// env is the state shared by one invocation's commands. It is built by
// NewRootCmd and filled in by the root command's PersistentPreRunE.
type env struct {
	flags  rootFlags
	dirs   paths.Dirs
	config *viper.Viper
	logger *zap.Logger
	out    *printer.Printer
}

// NewRootCmd creates the top-level "nitrate" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "nitrate",
		Short: "Test case management",
		Long: "Nitrate manages products, test plans, test cases and test runs,\n" +
			"and serves them over a JSON API and XML-RPC.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: e.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.configDir, "config-dir", "", "configuration directory (default: $NITRATE_CONFIG_DIR or the user config dir)")
	pf.StringVar(&e.flags.dataDir, "data-dir", "", "data directory (default: data_dir from config.yaml or ./.nitrate-db)")
	pf.BoolVar(&e.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&e.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&e.flags.as, "as", "", "username to act as (default: user from config.yaml)")

	root.AddCommand(
		newVersionCmd(e),
		newInitCmd(e),
		newServeCmd(e),
		newWorkerCmd(e),
		newSeedCmd(e),
		newUserCmd(e),
		newProductCmd(e),
		newPlanCmd(e),
		newCaseCmd(e),
		newRunCmd(e),
		newCaseRunCmd(e),
		newCommentCmd(e),
		newImportCmd(e),
		newExportCmd(e),
		newDumpCmd(e),
		newRestoreCmd(e),
	)
	return root
}

// setup resolves directories, loads config.yaml and builds the logger.
func (e *env) setup(cmd *cobra.Command, _ []string) error {
	e.out = newPrinter(cmd, e.flags.jsonMode)

	configDir, err := paths.ResolveConfigDir(e.flags.configDir)
	if err != nil {
		return sysError{err}
	}
	e.config, err = loadConfig(configDir)
	if err != nil {
		return sysError{err}
	}
	dataDir, err := paths.ResolveDataDir(e.flags.dataDir, e.config.GetString(cfgKeyDataDir))
	if err != nil {
		return sysError{err}
	}
	e.dirs = paths.Dirs{Config: configDir, Data: dataDir}

	level := e.config.GetString(cfgKeyLogLevel)
	if e.flags.logLevel != "" {
		level = e.flags.logLevel
	}
	e.logger, err = logging.New(level, e.config.GetString(cfgKeyLogFormat))
	if err != nil {
		return usageError{err}
	}
	return nil
}

// Execute runs the CLI on the process arguments and returns the exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes args and returns the exit code: 0 on success, 1 for user
// errors and 2 for system errors.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		printer.New(stdout, stderr, false).Error("nitrate: "+err.Error(), nil)
		return exitCode(err)
	}
	return exitSuccess
}

// usageError marks bad input: flags, arguments or references.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

// sysError marks failures of the environment: storage, network, files.
type sysError struct{ err error }

func (s sysError) Error() string { return s.err.Error() }
func (s sysError) Unwrap() error { return s.err }

func exitCode(err error) int {
	var se sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}
