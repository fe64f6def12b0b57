package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/testscriptgen/internal/devserver"
	"github.com/aristath/testscriptgen/internal/logging"
)

func newStubServerCmd(flags *globalFlags) *cobra.Command {
	opts := devserver.DefaultOptions()
	var addr string

	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Run an in-memory stand-in for the execution backend",
		Long: "Serves the backend REST API from memory for local development. " +
			"Initiated tasks complete after --run-delay; instructions containing --fail-keyword fail instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logging.Configure(flags.logLevel, ""); err != nil {
				return err
			}
			opts.Log = logging.Component("devserver")

			srv, err := devserver.New(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", ":8000", "listen address")
	fl.StringVar(&opts.Username, "username", opts.Username, "login username")
	fl.StringVar(&opts.Password, "password", opts.Password, "login password")
	fl.StringVar(&opts.JWTSecret, "jwt-secret", opts.JWTSecret, "HS256 signing secret")
	fl.DurationVar(&opts.RunDelay, "run-delay", 5*time.Second, "how long an initiated task runs")
	fl.StringVar(&opts.FailKeyword, "fail-keyword", opts.FailKeyword, "instructions containing this fail")
	return cmd
}
