// Package safety implements the CI/token safety check of spec.md §4.10:
// a common misconfiguration where a CI job clears CARGO_REGISTRY_TOKEN
// instead of leaving it unset, which would otherwise surface as a
// confusing cargo authentication failure deep into a release run.
package safety

import (
	"fmt"
	"os"

	"github.com/grovetools/release-plz-go/internal/apperrors"
)

// CheckRegistryToken fails fast when running under GitHub Actions with
// CARGO_REGISTRY_TOKEN explicitly set to an empty string. An unset
// variable is fine — the local `cargo login` credential store may
// supply the token instead.
func CheckRegistryToken() error {
	if os.Getenv("GITHUB_ACTIONS") != "true" {
		return nil
	}
	if token, set := os.LookupEnv("CARGO_REGISTRY_TOKEN"); set && token == "" {
		return fmt.Errorf("safety: %w", apperrors.ErrEmptyTokenInCI)
	}
	return nil
}
