package perf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestStopWithThresholdWarnsWhenSlow(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	timer := Start("task.login", logger)
	time.Sleep(5 * time.Millisecond)
	d := timer.StopWithThreshold(time.Millisecond)

	if d < 5*time.Millisecond {
		t.Errorf("duration = %v, want >= 5ms", d)
	}
	if !strings.Contains(buf.String(), "operation exceeded threshold") {
		t.Errorf("expected threshold warning, got %q", buf.String())
	}
}

func TestStopWithZeroThresholdNeverWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	Start("task.gallery", logger).StopWithThreshold(0)

	if strings.Contains(buf.String(), "exceeded") {
		t.Errorf("unexpected warning: %q", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	timer := Start("noop", nil)
	if d := timer.StopWithThreshold(time.Nanosecond); d <= 0 {
		t.Errorf("duration = %v", d)
	}
}
