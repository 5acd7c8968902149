package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/calbin/internal/common"
)

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	DefinitionsDir string    `yaml:"definitionsDir"`
	AuditLog       string    `yaml:"auditLog"`
	Logs           logConfig `yaml:"logs"`
}

var cfg config

func loadConfig(path string) (config, error) {
	var c config
	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return c, err
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	c.DefinitionsDir = resolvePath(c.DefinitionsDir)
	c.AuditLog = resolvePath(c.AuditLog)
	c.Logs.Directory = resolvePath(c.Logs.Directory)
	if c.AuditLog == "" {
		c.AuditLog = "calctl_audit.jsonl"
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
	return c, nil
}

// initConfig loads the optional YAML config and wires the rotating log
// sink. Without a config file everything stays on stderr with defaults.
func initConfig(path string) error {
	if path == "" {
		cfg = config{AuditLog: "calctl_audit.jsonl"}
		return nil
	}
	c, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	if cfg.Logs.Directory != "" {
		if err := setupLogging(cfg.Logs); err != nil {
			return err
		}
	}
	return nil
}

func setupLogging(logs logConfig) error {
	if err := os.MkdirAll(logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logs.Directory, "calctl.log"),
		MaxSize:    logs.MaxSizeMB,
		MaxAge:     logs.MaxAgeDays,
		MaxBackups: logs.MaxBackups,
		Compress:   logs.Compress,
	}
	common.SetLogOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}

// resolveDefinitionPath lets --def name shorthands resolve against the
// configured definitions directory.
func resolveDefinitionPath(path string) string {
	if path == "" || cfg.DefinitionsDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	candidate := filepath.Join(cfg.DefinitionsDir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
