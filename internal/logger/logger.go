package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Structured JSON logging to stderr. Field values must never contain
// secrets; callers log key names, not key material.

var service = "commerce-backend"

func SetService(name string) {
	if name != "" {
		service = name
	}
}

func Info(message string, fields map[string]any) {
	write("info", message, fields)
}

func Warn(message string, fields map[string]any) {
	write("warn", message, fields)
}

func Error(message string, fields map[string]any) {
	write("error", message, fields)
}

func Fatal(message string, fields map[string]any) {
	write("fatal", message, fields)
	os.Exit(1)
}

func write(level, message string, fields map[string]any) {
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
		"service":   service,
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("{\"level\":%q,\"message\":%q,\"log_error\":%q}", level, message, err.Error())
		return
	}
	log.Print(string(data))
}
