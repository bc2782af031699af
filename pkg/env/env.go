package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/labops/runcontrol/pkg/log"
	"github.com/pkg/errors"
)

var variables = new(Environment)

// Process the environment variables set for runcontrol.
func Process() error {
	if err := envconfig.Process("runcontrol", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevel(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by runcontrol.
type Environment struct {
	LogLevel        string        `default:"info"`
	BaseURL         string        `default:"http://127.0.0.1:8080"`
	Subdomain       string        `default:""`
	ProjectID       string        `default:""`
	LabID           string        `default:""`
	HTTPTimeout     time.Duration `default:"10s"`
	PollInterval    time.Duration `default:"1s"`
	StatsInterval   time.Duration `default:"10s"`
	MaxScheduleTime time.Duration `default:"10m"`
	HistoryPath     string        `default:""` // empty = in-memory
}
