package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stleox/seetrace/pkg/cmd/emit"
	"github.com/stleox/seetrace/pkg/config"
	"github.com/stleox/seetrace/pkg/sampler"
)

var (
	configFile string

	// flags shared by every subcommand, bound to viper keys
	configFlags = pflag.NewFlagSet("config", pflag.ContinueOnError)
)

func init() {
	// debug flag
	configFlags.BoolVar(&config.Debug, "debug", false, "Enable debug mode")
	configFlags.StringVar(&configFile, "config", "", "Config file (default is ./config.yaml)")

	configFlags.String(config.KeyServiceName, config.NameUnknown, "Service name of the root spans")
	configFlags.String(config.KeySamplerType, sampler.TypeRateLimiting, "Sampler type: const, probabilistic, ratelimiting or lowerbound")
	configFlags.Float64(config.KeySamplerParam, config.DefaultMaxTracesPerSecond, "Sampler parameter, e.g. traces per second for ratelimiting")
	configFlags.Float64(config.KeySamplerLowerBound, 1.0, "Traces per second guaranteed by the lowerbound sampler")
	configFlags.Duration(config.KeyReportInterval, config.ReportInterval, "Interval between two reports")
	configFlags.Int(config.KeyMaxTracers, config.MaxNumTracer, "Max number of services kept at the same time")
	configFlags.StringSlice(config.KeySinks, []string{config.SinkLog}, "Sinks: log, thrift, olap, otlp, stdout")
	configFlags.String(config.KeySpanLogPath, config.PathSpanLog, "File of the log sink")
	configFlags.String(config.KeyThriftPath, config.PathThrift, "File of the thrift sink")
	configFlags.String(config.KeyOlapDSN, config.SEETRACE_DEFAULT_DSN, "DSN of the OLAP server")
	configFlags.String(config.KeyOTLPEndpoint, "", "OTLP gRPC endpoint, e.g. localhost:4317")
}

// NewViper creates a new viper instance configured.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config") // name of config file (without extension)
	vp.SetConfigType("yaml")   // useful if the given config file does not have the extension in the name
	vp.AddConfigPath(".")      // look for a config in the working directory first
	if home, err := os.UserHomeDir(); err == nil {
		vp.AddConfigPath(home + "/.seetrace")
	}

	// read config from environment variables
	vp.SetEnvPrefix("seetrace") // env var must start with SEETRACE_
	// replace - by _ for environment variable names
	// (eg: the env var for sampler-param is SEETRACE_SAMPLER_PARAM)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv() // read in environment variables that match
	return vp
}

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "seetrace",
		Short:         "seetrace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := vp.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := readConfigFile(vp); err != nil {
				return err
			}

			config.InitLogrus()
			if config.Debug {
				logrus.Info("enabled debug mode")
			} else {
				logrus.Info("disabled debug mode")
			}
			return nil
		},
	}
	root.PersistentFlags().AddFlagSet(configFlags)
	return root
}

// 没有配置文件时只用 flag 和环境变量
func readConfigFile(vp *viper.Viper) error {
	if configFile != "" {
		vp.SetConfigFile(configFile)
	}
	err := vp.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !(configFile == "" && errors.As(err, &notFound)) {
		return err
	}
	if err == nil {
		logrus.WithField("file", vp.ConfigFileUsed()).Debug("SeeTrace read config file")
	}
	return nil
}

func Execute() {
	// 全局初始化 VP 配置
	vp := NewViper()

	root := New(vp)
	root.AddCommand(emit.New(vp))

	err := root.Execute()
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
