package services

import "errors"

// Service error taxonomy. Handlers map these to HTTP statuses; the worker
// maps generation failures to a failed run+roadmap instead of propagating.
var (
  ErrNotFound   = errors.New("not found")
  ErrValidation = errors.New("validation failed")
  ErrGeneration = errors.New("generation failed")
)

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsGeneration(err error) bool { return errors.Is(err, ErrGeneration) }
