package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.MaxValueSize < 1 {
		errs = errs.Append("max_value_size", fmt.Errorf("must be at least 1, got %d", c.MaxValueSize))
	}
	if c.MaxDocumentSize < 1 {
		errs = errs.Append("max_document_size", fmt.Errorf("must be at least 1, got %d", c.MaxDocumentSize))
	}
	if int64(c.MaxValueSize) > c.MaxDocumentSize {
		errs = errs.Append("max_value_size", errors.New("cannot exceed max_document_size"))
	}

	return criterio.ValidateStruct(
		errs.ToError(),
		criterio.Run("store", c.Store, validStoreLocation),
	)
}

// ValidateDeep runs Validate and then checks the files the configuration
// points at. An empty configPath skips the config file check.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("store", c.Store, isFileOrNotExist),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Store == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "store",
			Message:  "no store location set, using ~/kvstore/store.json",
		})
	}
	if int64(c.MaxValueSize)*2 > c.MaxDocumentSize {
		warnings = append(warnings, ValidationWarning{
			Category: "limits",
			Message:  "max_document_size leaves room for fewer than two values",
		})
	}

	return warnings
}

func validStoreLocation(location string) error {
	if location == "" {
		return nil
	}
	if strings.TrimSpace(location) == "" {
		return errors.New("cannot be blank")
	}
	if strings.ContainsRune(location, 0) {
		return errors.New("contains a NUL byte")
	}
	return nil
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isFileOrNotExist validates that a ".json" store location is a regular file
// or doesn't exist yet. Directory locations are checked the same way after
// resolution by the store itself.
func isFileOrNotExist(location string) error {
	if !strings.HasSuffix(location, ".json") {
		return nil
	}
	info, err := os.Stat(location)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if info.IsDir() {
		return errors.New("exists but is a directory")
	}
	return nil
}
