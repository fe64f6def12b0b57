// Package devserver is a stand-in for the execution backend, for local
// development and tests. It serves the same REST surface, keeps tasks in
// memory and fakes a run by completing each initiated task after a delay.
package devserver

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures the stub backend.
type Options struct {
	Username  string
	Password  string
	Email     string
	JWTSecret string
	TokenTTL  time.Duration

	// RunDelay is how long an initiated task stays running.
	RunDelay time.Duration
	// FailKeyword makes a run fail when the instruction contains it.
	FailKeyword string

	Log *logrus.Entry
}

// DefaultOptions returns the options used by `atsg stub-server`.
func DefaultOptions() Options {
	return Options{
		Username:    "admin",
		Password:    "admin",
		Email:       "admin@example.com",
		JWTSecret:   "atsg-dev-secret",
		TokenTTL:    24 * time.Hour,
		RunDelay:    5 * time.Second,
		FailKeyword: "FAIL",
	}
}
