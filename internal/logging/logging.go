// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Setup sets the standard logger's level, formatter and output.
// format is "text" (the default) or "json".
func Setup(level, format string, w io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var f log.Formatter
	switch format {
	case "", "text":
		f = &log.TextFormatter{FullTimestamp: true}
	case "json":
		f = &log.JSONFormatter{}
	default:
		return fmt.Errorf("log format %q: must be text or json", format)
	}

	log.SetLevel(lvl)
	log.SetFormatter(f)
	if w != nil {
		log.SetOutput(w)
	}
	return nil
}
