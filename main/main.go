package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bioinspired/ybot/config"
	"github.com/bioinspired/ybot/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "main",
})

// app holds what every command shares: the viper instance the config is read
// from, and the log file to close on the way out.
type app struct {
	cfgFile string
	v       *viper.Viper
	logs    io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "ybot",
		Short:         "Drive the Y-robot through a gait over a serial link.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := a.initializeConfig()
			if err != nil {
				return err
			}

			// Logging is configured before the rest of the config is
			// validated, so that validation problems are logged properly.
			var lc config.LoggerConfig
			err = a.v.UnmarshalKey("logger", &lc)
			if err != nil {
				return fmt.Errorf("failed to unmarshal logger config: %w", err)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				lc.Level = "debug"
			}

			a.logs, err = logging.Configure(lc, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logs != nil {
				return a.logs.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./ybot.yaml)")
	root.PersistentFlags().Bool("debug", false, "log every tick")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newPortsCmd(a),
		newAnalyzeCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// initializeConfig reads the config file, if there is one. A missing default
// config file is fine; the defaults are used.
func (a *app) initializeConfig() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("ybot")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("YBOT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	err := a.v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func (a *app) config() (*config.Config, error) {
	return config.Load(a.v)
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
