package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process-wide logger. APP_ENV dev/development gets a
// human-friendly console writer; everything else emits JSON lines. Every
// entry carries the service name so the API and the importer can share one
// log stream.
func NewLogger(env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "reviewboost").Logger()
}
