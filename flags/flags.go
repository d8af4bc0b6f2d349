// Package flags declares the tool's global flags and binds them to viper,
// so every flag can also be set through the environment (EMRCTL_ prefix,
// dashes replaced by underscores). EMRCTL_KEY_NAME is the documented
// fallback for cluster files that do not set a keypair.
package flags

import (
	"strings"
	"time"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LogFormat = "log-format"
	LogLevel  = "log-level"
	LogSource = "log-source"
	Output    = "output"
	Region    = "region"
	KeyName   = "key-name"
	Timeout   = "timeout"
)

// Setup registers the global flags on the given flag set and binds them to
// viper. It must be called exactly once, on the root command's persistent
// flags, before any command runs.
func Setup(flags *flag.FlagSet) {
	flags.String(LogFormat, "text", "log format (json, text)")
	flags.String(LogLevel, "WARN", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.String(Output, "text", "result output format (json, text)")
	flags.String(Region, "", "AWS region (defaults to the ambient AWS configuration)")
	flags.String(KeyName, "", "EC2 keypair used when the cluster file does not set one")
	flags.Duration(Timeout, 20*time.Minute, "how long to wait for the cluster to initialize or terminate")

	viper.SetEnvPrefix("emrctl")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
}
