package task

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/failure"
)

// recoverable runs fn and converts a panic into an Unexpected failure.
func recoverable(logger logrus.FieldLogger, opName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"operation": opName,
				"panic":     r,
				"stack":     string(debug.Stack()),
			}).Error("recovered from panic in operation")
			err = failure.Wrap(failure.Unexpected, "", fmt.Errorf("panic in %s: %v", opName, r))
		}
	}()
	return fn()
}
