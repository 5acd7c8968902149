package common

import (
	"io"
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[calbin] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// SetLogOutput redirects the package logger, typically to tee stderr with a
// rotating file sink.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}
