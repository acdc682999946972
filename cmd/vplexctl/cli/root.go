// Copyright 2020 Dell Inc. or its subsidiaries.

// Package cli implements the vplexctl command tree. It is a thin consumer
// of the provision package, no resource rules live here.
package cli

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh/terminal"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/client"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "vplexctl",
	Short:        "Inspect and reconcile VPLEX storage resources",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.vplexctl.yaml)")
	flags.String("vplexhost", "", "VPLEX management host")
	flags.Int("vplexport", 443, "VPLEX management port")
	flags.String("vplexuser", "", "VPLEX user name")
	flags.String("vplexpassword", "", "VPLEX password (prompted when unset)")
	flags.Bool("verifycert", false, "verify the server certificate")
	flags.String("ssl-ca-cert", "", "CA bundle path for certificate verification")
	flags.Int("timeout", client.DefaultTimeoutSeconds, "request timeout in seconds")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")

	for _, key := range []string{"vplexhost", "vplexport", "vplexuser", "vplexpassword",
		"verifycert", "ssl-ca-cert", "timeout", "log-level"} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("VPLEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".vplexctl")
		}
	}
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file %s", viper.ConfigFileUsed())
	}

	if level, err := logrus.ParseLevel(viper.GetString("log-level")); err == nil {
		logrus.SetLevel(level)
	}
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// session builds a client from the bound connection settings and probes the
// endpoint.
func session() (*client.Client, error) {
	password := viper.GetString("vplexpassword")
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ",
			viper.GetString("vplexuser"), viper.GetString("vplexhost"))
		raw, err := terminal.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		password = string(raw)
	}

	api, err := client.New(&client.Config{
		Host:           viper.GetString("vplexhost"),
		Port:           viper.GetInt("vplexport"),
		User:           viper.GetString("vplexuser"),
		Password:       password,
		VerifyCert:     viper.GetBool("verifycert"),
		SSLCACertPath:  viper.GetString("ssl-ca-cert"),
		TimeoutSeconds: viper.GetInt("timeout"),
	})
	if err != nil {
		return nil, err
	}
	if _, err := api.GetVplexSetup(); err != nil {
		return nil, err
	}
	return api, nil
}
