package dnstracer

import "github.com/sirupsen/logrus"

// logFields is a convenience alias so call sites don't need to import
// logrus directly.
type logFields = logrus.Fields

// fieldLogger is the minimal logging surface Tracer and its collaborators
// depend on. *logrus.Logger and *logrus.Entry both satisfy it.
type fieldLogger interface {
	WithFields(logFields) *logrus.Entry
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
}

// defaultLogger returns a logrus.Logger configured the way a library should
// default: at InfoLevel, so the tracer's Debug-level query logging stays
// hidden unless the caller opts in. The CLI builds its own logger at the
// same level and raises it to ErrorLevel under --quiet or --nagios.
func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}
