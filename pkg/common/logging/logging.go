package logging

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logger: JSON lines at the given level.
func Setup(out io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	logger := log.StandardLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return logger, nil
}
