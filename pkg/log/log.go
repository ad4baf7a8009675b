package log

import (
	"io"
	"os"
	"path"
	"sync"

	global_config "advflow/app/config"
	"advflow/pkg/contextx"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerName = "advflow"
	loggerMu          sync.Mutex
	logger            = newLogger(os.Stderr, NewLogFormatter(), logrus.InfoLevel)
)

func newLogger(out io.Writer, formatter logrus.Formatter, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(formatter)
	return l
}

// Initialize replaces the process logger according to cfg. With an empty
// DirPath the logger writes to stderr, otherwise to advflow.log in DirPath.
func Initialize(cfg global_config.LogConfig) error {
	formatter := NewLogFormatter()
	if cfg.TimestampFormat != "" {
		formatter.TimestampFormat = cfg.TimestampFormat
	}
	if cfg.Format != "" {
		formatter.OutputFormat = cfg.Format
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.DirPath != "" {
		if err := os.MkdirAll(cfg.DirPath, 0770); err != nil {
			return err
		}
		file, err := os.OpenFile(path.Join(cfg.DirPath, "advflow.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		out = file
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(out, formatter, level)
	return nil
}

// SetOutput redirects the current logger, mostly for tests.
func SetOutput(out io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger.SetOutput(out)
}

func GetLogger(ctx interface{}, name string) *logrus.Entry {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()

	workflow := "-"
	requestId := "-"
	principal := "-"
	switch t := ctx.(type) {
	case string:
		workflow = t
	case *contextx.Context:
		if t != nil {
			if w := t.GetWorkflow(); w != "" {
				workflow = w
			}
			if r := t.GetRequestID(); r != "" {
				requestId = r
			}
			if p := t.GetPrincipalID(); p != "" {
				principal = p
			}
		}
	case map[string]interface{}:
		if w, ok := t["workflow"].(string); ok {
			workflow = w
		}
		if r, ok := t["requestId"].(string); ok {
			requestId = r
		}
	}
	return l.WithFields(map[string]interface{}{
		"name":      name,
		"requestId": requestId,
		"workflow":  workflow,
		"principal": principal,
	})
}

func Info(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Info(args...)
}

func Debug(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debug(args...)
}

func Warn(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warn(args...)
}

func Error(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Error(args...)
}

func Infof(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Infof(format, args...)
}

func Debugf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debugf(format, args...)
}

func Warnf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warnf(format, args...)
}

func Errorf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Errorf(format, args...)
}
