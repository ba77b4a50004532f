package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/CLDWare/attendance-kiosk/config"
)

// Loggers are usable before Init so background workers started in tests
// never hit a nil logger.
var (
	DebugLogger   = log.New(os.Stdout, "DEBUG: ", log.Ltime|log.Lshortfile)
	InfoLogger    = log.New(os.Stdout, "INFO: ", log.Ltime|log.Lshortfile)
	WarningLogger = log.New(os.Stdout, "WARN: ", log.Ltime|log.Lshortfile)
	ErrorLogger   = log.New(os.Stderr, "ERR: ", log.Ltime|log.Lshortfile)
	initialized   atomic.Bool
)

var logLevels = map[string]uint32{
	"debug": 1,
	"info":  2,
	"warn":  3,
	"error": 4,
}

var currentLevel atomic.Uint32

func init() {
	currentLevel.Store(logLevels["info"])
}

// Init initializes the logger with configuration
func Init() {
	if initialized.Load() {
		return
	}

	cfg := config.Get()
	SetLevel(cfg.Logging.Level)

	initialized.Store(true)
}

// SetLevel changes the minimum level that is written. Unknown levels fall
// back to info.
func SetLevel(level string) {
	lvl := logLevels[strings.ToLower(level)]
	if lvl == 0 {
		lvl = logLevels["info"]
	}
	currentLevel.Store(lvl)
}

func Debug(v ...any) {
	if currentLevel.Load() <= logLevels["debug"] {
		DebugLogger.Output(2, fmt.Sprintln(v...))
	}
}

func Info(v ...any) {
	if currentLevel.Load() <= logLevels["info"] {
		InfoLogger.Output(2, fmt.Sprintln(v...))
	}
}

func Warn(v ...any) {
	if currentLevel.Load() <= logLevels["warn"] {
		WarningLogger.Output(2, fmt.Sprintln(v...))
	}
}

func Err(v ...any) {
	if currentLevel.Load() <= logLevels["error"] {
		ErrorLogger.Output(2, fmt.Sprintln(v...))
	}
}
