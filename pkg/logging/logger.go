package logging

import (
	"log"
	"os"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
)

// InitLogging initializes logging
func InitLogging() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// Infof logs info level messages
func Infof(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Printf(format, v...)
	}
}

// Debugf logs debug level messages
func Debugf(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Printf("DEBUG: "+format, v...)
	}
}

// Warnf logs warning level messages
func Warnf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf("WARN: "+format, v...)
	}
}

// Errorf logs error level messages
func Errorf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf(format, v...)
	}
}

// Criticalf logs messages that need operator attention
func Criticalf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf("CRITICAL: "+format, v...)
	}
}
