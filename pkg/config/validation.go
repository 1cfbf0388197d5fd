package config

import "strings"

// FieldError names one invalid field and why.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ErrorList aggregates the field errors found while validating a Config.
type ErrorList []FieldError

func (list ErrorList) Error() string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// Validate checks a parsed Config against the invariants of DeploymentSpec
// (spec.md §3): exactly one of image/dockerfile+context, replicas >= 1, a
// valid container port, and a non-empty deployment name.
func Validate(cfg *Config) ErrorList {
	var allErrs ErrorList

	d := cfg.Deployment
	if d.Name == "" {
		allErrs = append(allErrs, FieldError{"deployment.name", "must not be empty"})
	}

	hasImage := d.Image != ""
	hasBuild := d.Dockerfile != ""
	switch {
	case hasImage && hasBuild:
		allErrs = append(allErrs, FieldError{"deployment", "exactly one of image or dockerfile+context must be set, not both"})
	case !hasImage && !hasBuild:
		allErrs = append(allErrs, FieldError{"deployment", "exactly one of image or dockerfile+context must be set"})
	case hasBuild && d.Context == "":
		allErrs = append(allErrs, FieldError{"deployment.context", "required when dockerfile is set"})
	}

	if d.Replicas < 1 {
		allErrs = append(allErrs, FieldError{"deployment.replicas", "must be >= 1"})
	}

	if d.ContainerPort < 1 || d.ContainerPort > 65535 {
		allErrs = append(allErrs, FieldError{"deployment.containerPort", "must be between 1 and 65535"})
	}

	return allErrs
}
