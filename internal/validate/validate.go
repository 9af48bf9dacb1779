// Package validate exposes the single go-playground/validator instance the
// engine uses to validate node parameter structs, plus the identifier
// pattern that node names must match (also registered as the "catalog_key"
// struct tag). Mirrors the teacher's
// internal/config validator_instance singleton and its "step_id" custom tag.
package validate

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate

	catalogKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
)

// Instance returns the shared validator, registering the engine's custom
// tags on first use.
func Instance() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("catalog_key", func(fl validator.FieldLevel) bool {
			return catalogKeyPattern.MatchString(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Struct validates a struct value against its `validate:"..."` tags using
// the shared instance.
func Struct(s interface{}) error {
	return Instance().Struct(s)
}

// IsValidKey reports whether key matches the catalog/node identifier
// character class: letters, digits, underscores, hyphens, and dots (the
// "OriginPipeline.NodeName" form of merged pipelines), starting with a
// letter.
func IsValidKey(key string) bool {
	return catalogKeyPattern.MatchString(key)
}
