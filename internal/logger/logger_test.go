package logger

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLevel("info")
	})
	log.SetOutput(&buf)

	var tests = []struct {
		level   string
		emit    func(string, ...interface{})
		printed bool
	}{
		{"info", Debug, false},
		{"info", Info, true},
		{"debug", Debug, true},
		{"warn", Info, false},
		{"warn", Warn, true},
		{"error", Warn, false},
		{"error", Error, true},
		{"bogus", Info, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			SetLevel(tt.level)
			tt.emit("hello %d", 1)
			if got := strings.Contains(buf.String(), "hello 1"); got != tt.printed {
				t.Errorf("\nat level %s got printed=%v, wanted %v", tt.level, got, tt.printed)
			}
		})
	}
}
