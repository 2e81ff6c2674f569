package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrToolNotFound - requested tool is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool - tool name already registered
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrInvalidInput - input rejected by schema validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found (model file, catalog entry)
	ErrNotFound = errors.New("not found")

	// ErrEngine - fatal engine failure; terminates the turn stream without done
	ErrEngine = errors.New("engine failure")

	// ErrChecksum - downloaded artifact failed integrity verification
	ErrChecksum = errors.New("checksum mismatch")
)

func Engine(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %v: %w", msg, err, ErrEngine)
	}
	return fmt.Errorf("%s: %w", msg, ErrEngine)
}
