package cmd

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"report-backend/internal/reports"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// ConfigureLogging installs a text slog handler writing to w at the given
// level (debug, info, warn or error). Unknown levels fall back to info.
func ConfigureLogging(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		log.Printf("invalid log level '%s', using info", level)
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// NewClassifier builds the upload classifier from configured extension lists,
// using the defaults for any list left empty.
func NewClassifier(imageExtensions, textExtensions []string) (*reports.Classifier, error) {
	if len(imageExtensions) == 0 {
		imageExtensions = reports.DefaultImageExtensions
	}
	if len(textExtensions) == 0 {
		textExtensions = reports.DefaultTextExtensions
	}
	if err := reports.CheckExtensions(imageExtensions, textExtensions); err != nil {
		return nil, err
	}
	return reports.NewClassifier(imageExtensions, textExtensions), nil
}

type classifierFile struct {
	ImageExtensions []string `yaml:"image_extensions"`
	TextExtensions  []string `yaml:"text_extensions"`
}

// LoadClassifier builds the classifier from a yaml file listing
// image_extensions and text_extensions. Lists passed in directly take
// precedence over the file. An empty path skips the file.
func LoadClassifier(path string, imageExtensions, textExtensions []string) (*reports.Classifier, error) {
	if path == "" {
		return NewClassifier(imageExtensions, textExtensions)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading classifier config %s: %w", path, err)
	}

	var file classifierFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing classifier config %s: %w", path, err)
	}

	if len(imageExtensions) == 0 {
		imageExtensions = file.ImageExtensions
	}
	if len(textExtensions) == 0 {
		textExtensions = file.TextExtensions
	}

	classifier, err := NewClassifier(imageExtensions, textExtensions)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier config %s: %w", path, err)
	}

	slog.Info("loaded classifier config", "path", path, "image_extensions", imageExtensions, "text_extensions", textExtensions)

	return classifier, nil
}
