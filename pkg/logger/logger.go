package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new logger instance for the named service
func New(service, level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log, service: service}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithFields(fields)
}

// WithComponent creates a new logger entry with a component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service":   l.service,
		"component": component,
	})
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// Audit logs audit events with structured format
func (l *Logger) Audit(subjectID, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":      true,
		"service":    l.service,
		"subject_id": subjectID,
		"action":     action,
		"resource":   resource,
		"success":    success,
		"details":    details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// LedgerTransaction logs ledger transaction events
func (l *Logger) LedgerTransaction(operation, txID string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"ledger":         true,
		"service":        l.service,
		"operation":      operation,
		"transaction_id": txID,
		"success":        success,
		"details":        details,
	})

	if success {
		entry.Info("Ledger transaction completed")
	} else {
		entry.Error("Ledger transaction failed")
	}
}

// Security logs security-related events
func (l *Logger) Security(event, subjectID string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security":   true,
		"service":    l.service,
		"event":      event,
		"subject_id": subjectID,
		"details":    details,
	}).Warn("Security event")
}
