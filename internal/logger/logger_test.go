package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewLevel(t *testing.T) {
	if got := New("debug").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("New(debug) level = %v", got)
	}
	if got := New("nonsense").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("New(nonsense) level = %v, want info", got)
	}
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New("info")
	log.SetOutput(&buf)

	gl := NewGormLogger(log)
	fc := func() (string, int64) { return "UPDATE users SET shares = shares - 1", 1 }

	gl.Trace(context.Background(), time.Now(), fc, nil)
	if buf.Len() != 0 {
		t.Errorf("fast query logged at warn level: %s", buf.String())
	}

	gl.Trace(context.Background(), time.Now(), fc, errors.New("disk I/O error"))
	if !strings.Contains(buf.String(), "sql update failed") {
		t.Errorf("error not logged: %s", buf.String())
	}

	buf.Reset()
	gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Errorf("record not found logged: %s", buf.String())
	}

	buf.Reset()
	gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("silent logger wrote: %s", buf.String())
	}
}
