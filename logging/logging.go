package logging

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type ctxKey int

const (
	handshakeIDKey ctxKey = iota
)

// WithHandshakeID returns a context whose log entries carry the given handshake id.
func WithHandshakeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, handshakeIDKey, id)
}

type logger struct {
	entry   *logrus.Entry
	logFile *os.File
}

var (
	gLogger     logger
	gInstanceID string
)

// Logger returns the process logger, annotated with the handshake id when ctx has one.
func Logger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if id, ok := ctx.Value(handshakeIDKey).(string); ok {
			return gLogger.entry.WithField("handshake", id)
		}
	}

	return gLogger.entry
}

func init() {
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "warn")

	gInstanceID = uuid.New().String()
	gLogger.entry = baseEntry()
	logrus.SetLevel(logrus.WarnLevel)
}

func baseEntry() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	})
}

// Configure sets the log level, output location and format from cfg.
func Configure(cfg *viper.Viper) error {
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		logrus.SetOutput(os.Stdout)
	case "stderr", "":
		logrus.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return errors.Wrapf(err, "opening log file %s", loc)
		}
		logrus.SetOutput(file)
		if gLogger.logFile != nil {
			gLogger.logFile.Close()
		}
		gLogger.logFile = file
	}
	gLogger.entry = baseEntry()

	if cfg.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	if cfg.GetString("logging.format") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}

// Redact returns a short stable fingerprint of a secret so it can be correlated in logs.
func Redact(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	sum := sha1.Sum([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:6])
}
