package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alapierre/go-quickpay/quickpay/util"
)

var (
	environment string
	debug       bool
)

func Execute() error {
	root := &cobra.Command{
		Use:           "quickpay",
		Short:         "Initiate a bank-to-bank payment from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug || util.DebugEnabled() {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&environment, "environment", "", "provider environment: sandbox or live (default from config)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(payCmd())
	return root.Execute()
}
