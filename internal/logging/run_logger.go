package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLogger captures one AI pipeline run (a chat turn or an idea
// generation batch) to its own log file under pipeline_logs/. The file
// holds the full prompt and raw response so a failed run can be
// replayed from disk.
type RunLogger struct {
	runID     string
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

var (
	currentLogger *RunLogger
	loggerMutex   sync.Mutex
)

// StartRunLogging initializes logging for a new pipeline run
func StartRunLogging(runID string) (*RunLogger, error) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if currentLogger != nil {
		currentLogger.Close()
	}

	timestamp := time.Now().Format("20060102_150405")
	logFileName := fmt.Sprintf("run_%s_%s.log", runID, timestamp)
	logPath := filepath.Join("pipeline_logs", logFileName)

	if err := os.MkdirAll("pipeline_logs", 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &RunLogger{
		runID:     runID,
		logFile:   logFile,
		startTime: time.Now(),
	}

	currentLogger = logger
	logger.Log("Pipeline run %s started", runID)

	return logger, nil
}

// GetCurrentLogger returns the current active logger
func GetCurrentLogger() *RunLogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	return currentLogger
}

// Log writes a message to the run log
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	elapsed := time.Since(r.startTime)
	logMessage := fmt.Sprintf(format, args...)

	message := fmt.Sprintf("[%s] [+%v] %s\n", timestamp, elapsed.Round(time.Millisecond), logMessage)
	r.logFile.WriteString(message)
	r.logFile.Sync()
}

// LogSection writes a section header to the log
func (r *RunLogger) LogSection(title string) {
	if r == nil {
		return
	}

	separator := "================================================================================"
	r.Log("%s", separator)
	r.Log("= %s", title)
	r.Log("%s", separator)
}

// LogRequest logs an outbound model request
func (r *RunLogger) LogRequest(model string, prompt string) {
	if r == nil {
		return
	}

	r.LogSection(fmt.Sprintf("MODEL REQUEST - %s", model))
	r.Log("Prompt length: %d characters", len(prompt))
	r.Log("--- PROMPT START ---")
	r.mutex.Lock()
	r.logFile.WriteString(prompt + "\n")
	r.mutex.Unlock()
	r.Log("--- PROMPT END ---")
}

// LogResponse logs a raw model response
func (r *RunLogger) LogResponse(model string, response string) {
	if r == nil {
		return
	}

	r.LogSection(fmt.Sprintf("MODEL RESPONSE - %s", model))
	r.Log("Response length: %d characters", len(response))
	r.Log("--- RESPONSE START ---")
	r.mutex.Lock()
	r.logFile.WriteString(response + "\n")
	r.mutex.Unlock()
	r.Log("--- RESPONSE END ---")
}

// LogError logs an error with a short context label
func (r *RunLogger) LogError(where string, err error) {
	if r == nil {
		return
	}

	r.Log("ERROR in %s: %v", where, err)
}

// Close finalizes the log file
func (r *RunLogger) Close() {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.logFile != nil {
		timestamp := time.Now().Format("15:04:05.000")
		elapsed := time.Since(r.startTime)
		finalMessage := fmt.Sprintf("[%s] [+%v] Pipeline run completed. Total duration: %v\n",
			timestamp, elapsed.Round(time.Millisecond), elapsed)
		r.logFile.WriteString(finalMessage)
		r.logFile.Sync()
		r.logFile.Close()
		r.logFile = nil
	}
}
