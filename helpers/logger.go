package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"

	"sjsage522/carlistingworker/logger"
)

// LoggerInterface receives reports about skipped work: a search a site could
// not honour, a page that failed, a row that did not parse.
type LoggerInterface interface {
	LogError(sourceName string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger appends skip reports to a plain text file so an operator can review
// them without digging through the structured log.
type Logger struct {
	mu        sync.Mutex
	errorFile string
}

// NewLogger creates a new logger instance
func NewLogger(errorFile string) *Logger {
	return &Logger{
		errorFile: errorFile,
	}
}

// LogError appends err to the report file with source name and timestamp
func (l *Logger) LogError(sourceName string, err error) {
	l.append(sourceName, err.Error())
}

// LogInfo appends a summary line to the report file
func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.append("INFO", fmt.Sprintf(format, args...))
}

func (l *Logger) append(tag, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.LogError("skip-report", fileErr, "failed to open %s", l.errorFile)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if _, werr := fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, tag, line); werr != nil {
		logger.LogError("skip-report", werr, "failed to write %s", l.errorFile)
	}
}
