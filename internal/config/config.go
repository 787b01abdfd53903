package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/containeroo/resolver"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// customFieldID matches Jira custom field identifiers such as customfield_10016.
var customFieldID = regexp.MustCompile(`^customfield_\d+$`)

// Load reads the settings file at the given path, resolves credential
// indirections and validates the result. Unknown keys are rejected so typos
// surface early; an empty file yields an empty config.
func Load(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	normalizeLists(&cfg.Report)

	if err := resolveCredentials(&cfg.Jira); err != nil {
		return cfg, err
	}
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// normalizeLists lowercases and trims classification entries so lookups
// against Jira values are case-insensitive.
func normalizeLists(rc *ReportConfig) {
	for _, list := range [][]string{rc.DoneCategories, rc.BugTypes, rc.StoryTypes} {
		for i, v := range list {
			list[i] = strings.ToLower(strings.TrimSpace(v))
		}
	}
}

// resolveCredentials runs credential fields through the resolver so a value
// can reference an env var or file instead of being inlined in the config.
func resolveCredentials(jc *JiraConfig) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"jira.email", &jc.Email},
		{"jira.apiToken", &jc.APIToken},
		{"jira.bearerToken", &jc.BearerToken},
	}

	for _, f := range fields {
		if *f.value == "" {
			continue
		}
		resolved, err := resolver.ResolveVariable(*f.value)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f.name, err)
		}
		*f.value = strings.TrimSpace(resolved)
	}

	return nil
}

// validateConfig checks field formats and value ranges.
func validateConfig(cfg *Config) error {
	v := validator.New()
	_ = v.RegisterValidation("customfield", func(fl validator.FieldLevel) bool {
		return customFieldID.MatchString(fl.Field().String())
	})
	// Report field paths with their YAML names so messages match the file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, describeFieldError(fe))
	}
	return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
}

// describeFieldError renders a single validation failure in plain words.
func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "customfield":
		return fmt.Sprintf("%s: %q must look like customfield_<number>", fieldPath(fe), fe.Value())
	case "url":
		return fmt.Sprintf("%s: %q is not a valid URL", fieldPath(fe), fe.Value())
	case "email":
		return fmt.Sprintf("%s: %q is not a valid email address", fieldPath(fe), fe.Value())
	case "required":
		return fmt.Sprintf("%s must not be empty", fieldPath(fe))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fieldPath(fe), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fieldPath(fe), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", fieldPath(fe), fe.Tag())
	}
}

// fieldPath strips the root struct name from the validator namespace,
// leaving the dotted YAML path (e.g. jira.storyPointsField).
func fieldPath(fe validator.FieldError) string {
	return strings.TrimPrefix(fe.Namespace(), "Config.")
}
