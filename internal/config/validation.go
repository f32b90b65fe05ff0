package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("userfolder", validateUserFolder); err != nil {
		panic(err)
	}
}

// validateUserFolder accepts a fmt pattern with exactly one %d verb and no
// separator, so every user maps to one top-level namespace.
func validateUserFolder(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return strings.Count(p, "%") == 1 && strings.Contains(p, "%d") && !strings.Contains(p, "/")
}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Rules that depend on the Type of a tagged union.
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		return fmt.Errorf("database: data_dir required for sqlite database")
	}
	if cfg.Auth.SessionStore == "badger" && cfg.Auth.SessionDir == "" {
		return fmt.Errorf("auth: session_dir required for badger session store")
	}
	if cfg.Upload.Type == "filesystem" && cfg.Upload.SpoolDir == "" {
		return fmt.Errorf("upload: spool_dir required for filesystem spool")
	}
	switch cfg.Storage.Type {
	case "filesystem":
		if root, _ := cfg.Storage.Options["root"].(string); root == "" {
			return fmt.Errorf("storage: options.root required for filesystem store")
		}
	case "s3":
		if bucket, _ := cfg.Storage.Options["bucket"].(string); bucket == "" {
			return fmt.Errorf("storage: options.bucket required for s3 store")
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
