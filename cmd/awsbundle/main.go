// Command awsbundle validates and inspects layered AWS client configuration.
//
// Usage:
//
//	awsbundle validate --dir config --env prod
//	awsbundle debug-config -f aws.yaml -f aws_prod.yaml
//	awsbundle explain S3.region --env prod
//	awsbundle dump-reference --schema openapi
//	awsbundle services
//	awsbundle set S3.region eu-west-1 --target-env prod
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "AWSBUNDLE"

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds the command tree and executes args. Output goes to out, logs to
// errOut.
func run(out, errOut io.Writer, args []string) error {
	a := &app{v: viper.New(), out: out, errOut: errOut, logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.Execute()
	_ = a.logger.Sync()
	return err
}

type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "awsbundle",
		Short:         "Validate and inspect layered AWS SDK configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.v.GetString("log-level"), a.errOut)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("dir", "config", "Directory holding <name>.yaml and <name>_<env>.yaml")
	flags.String("name", "aws", "Base name of the configuration files")
	flags.StringSlice("env", nil, "Environment overlays applied after the base file, in order")
	flags.StringSliceP("file", "f", nil, "Explicit configuration files, weakest first (overrides --dir)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("strict", false, "Apply the stock option rules and build every client after validation")
	flags.String("merge-policy", "replace-keys", "Layer merge policy (replace-keys, replace-root)")
	flags.StringSlice("user-agent", nil, "Extra ua_append entries")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.validateCommand(),
		a.setCommand(),
		a.debugConfigCommand(),
		a.explainCommand(),
		a.dumpReferenceCommand(),
		a.servicesCommand(),
		a.versionCommand(),
	)
	return root
}

func newLogger(level string, out io.Writer) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encoder := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoder),
		zapcore.AddSync(out),
		parsed,
	)
	return zap.New(core).Named("awsbundle"), nil
}
