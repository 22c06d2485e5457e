package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// for Log

// InitLogrus sets the global logrus format and level according to Debug.
func InitLogrus() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: time.DateTime,
	})
	if Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewFileLogger returns a JSON logger appending to path. The returned close
// func releases the file.
func NewFileLogger(path string) (*logrus.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.DateTime,
	})
	logger.SetOutput(f)
	return logger, f.Close, nil
}

func init() {
	InitLogrus()
}
