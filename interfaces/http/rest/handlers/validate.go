package handlers

import (
	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. validator caches struct
// metadata, so one instance serves all handlers.
var validate = validator.New()

// ValidateStruct validates a request DTO against its validate tags.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
