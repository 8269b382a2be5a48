package lib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogDirectory = "logs"
	LogFileName  = "log"
)

/*
	Leveled, colored logging for the engine.
	Output goes to any io.Writer; when none is given it fans out to stdout and an auto-rotating file
	under the data directory.
*/

func init() {
	color.NoColor = false
}

// LoggerI defines the interface for various logging levels and formatted output
type LoggerI interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	Print(msg string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Printf(format string, args ...interface{})
	// WithModule returns a logger that tags every line with the module name
	WithModule(module string) LoggerI
}

const (
	DebugLevel int32 = -4
	InfoLevel  int32 = 0
	WarnLevel  int32 = 4
	ErrorLevel int32 = 8
)

type logColor int

const (
	white logColor = iota
	red
	green
	yellow
	blue
	gray
)

var _ LoggerI = &Logger{}

// LoggerConfig holds the level and the destination of the logger
type LoggerConfig struct {
	Level int32 `json:"level"`
	Out   io.Writer
}

// Logger is the concrete implementation of LoggerI
type Logger struct {
	config LoggerConfig
	module string
	mu     *sync.Mutex // serializes writes from concurrent settlement workers
}

func (l *Logger) Debug(msg string) { l.log(DebugLevel, blue, "DEBUG", msg) }
func (l *Logger) Info(msg string)  { l.log(InfoLevel, green, "INFO", msg) }
func (l *Logger) Warn(msg string)  { l.log(WarnLevel, yellow, "WARN", msg) }
func (l *Logger) Error(msg string) { l.log(ErrorLevel, red, "ERROR", msg) }
func (l *Logger) Print(msg string) { l.write(msg) }

// Fatal() logs an error message and terminates the program
func (l *Logger) Fatal(msg string) {
	l.write(colorString(red, l.prefix("FATAL")+msg))
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, blue, "DEBUG", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, green, "INFO", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, yellow, "WARN", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, red, "ERROR", fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

func (l *Logger) Printf(format string, args ...interface{}) { l.write(fmt.Sprintf(format, args...)) }

// WithModule() returns a copy of the logger that prefixes each line with [module]
func (l *Logger) WithModule(module string) LoggerI {
	return &Logger{config: l.config, module: module, mu: l.mu}
}

// log() writes the message if the configured level allows it
func (l *Logger) log(level int32, c logColor, label, msg string) {
	if l.config.Level > level {
		return
	}
	l.write(colorString(c, l.prefix(label)+msg))
}

// prefix() builds the 'LEVEL: [module] ' line header
func (l *Logger) prefix(label string) string {
	if l.module == "" {
		return label + ": "
	}
	return fmt.Sprintf("%s: [%s] ", label, l.module)
}

// write() outputs the log message with a timestamp to the configured writer
func (l *Logger) write(msg string) {
	timeColored := colorString(gray, time.Now().Format(time.StampMilli))
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.config.Out, "%s %s\n", timeColored, msg); err != nil {
		fmt.Println(err.Error())
	}
}

// NewLogger() creates a new Logger; a nil writer means stdout plus a rotating file in the data directory
func NewLogger(config LoggerConfig, dataDirPath ...string) LoggerI {
	if config.Out == nil {
		dir := DefaultDataDirPath()
		if len(dataDirPath) != 0 && dataDirPath[0] != "" {
			dir = dataDirPath[0]
		}
		logPath := filepath.Join(dir, LogDirectory, LogFileName)
		if _, err := os.Stat(logPath); errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(filepath.Join(dir, LogDirectory), os.ModePerm); err != nil {
				panic(err)
			}
		}
		config.Out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 100,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	return &Logger{config: config, mu: &sync.Mutex{}}
}

// NewDefaultLogger() creates a Logger at the Debug level writing to stdout
func NewDefaultLogger() LoggerI {
	return NewLogger(LoggerConfig{Level: DebugLevel, Out: os.Stdout})
}

// NewNullLogger() creates a Logger that discards all output
func NewNullLogger() LoggerI {
	return NewLogger(LoggerConfig{Level: ErrorLevel, Out: io.Discard})
}

// ParseLogLevel() converts a loose level string like 'debug' or 'warning' into a level
func ParseLogLevel(s string) int32 {
	switch s = strings.ToLower(s); {
	case strings.Contains(s, "deb"):
		return DebugLevel
	case strings.Contains(s, "inf"):
		return InfoLevel
	case strings.Contains(s, "war"):
		return WarnLevel
	case strings.Contains(s, "err"):
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// colorString() applies color to each line of the message separately so multi-line output stays colored
func colorString(c logColor, msg string) string {
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		lines[i] = cString(c, line)
	}
	return strings.Join(lines, "\n")
}

func cString(c logColor, msg string) string {
	switch c {
	case blue:
		return color.BlueString(msg)
	case red:
		return color.RedString(msg)
	case yellow:
		return color.YellowString(msg)
	case green:
		return color.GreenString(msg)
	case gray:
		return color.HiBlackString(msg)
	default:
		return color.WhiteString(msg)
	}
}
