package main

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		debug     bool
		wantLevel logrus.Level
		wantText  bool
	}{
		{"debug flag wins", "error", true, logrus.DebugLevel, true},
		{"configured level", "warn", false, logrus.WarnLevel, false},
		{"unknown level", "loud", false, logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := initLogger(tt.level, tt.debug)
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level: got %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
			_, isText := logger.Formatter.(*logrus.TextFormatter)
			if isText != tt.wantText {
				t.Errorf("text formatter: got %v, want %v", isText, tt.wantText)
			}
		})
	}
}
