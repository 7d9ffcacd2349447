package cmd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/topic-news/library/config"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateLLMConfig(get, &validationErrs)
	validateSearchConfig(get, &validationErrs)
	validateCrewConfig(get, &validationErrs)
	validateSessionConfig(get, &validationErrs)
	validateLogConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateLLMConfig validates the chat backend selection and model names.
func validateLLMConfig(get configGetter, errs *[]string) {
	validateOptionalEnum(get, config.KeyLLMBackend, []string{"openai", "responses", "gemini"}, errs)
	validateOptionalURL(get, config.KeyLLMBaseURL, errs)
	validateOptionalStringNonEmpty(get, config.KeyLLMWorkerModel, errs)
	validateOptionalStringNonEmpty(get, config.KeyLLMManagerModel, errs)
	validateOptionalDuration(get, config.KeyLLMTimeout, errs)
}

// validateSearchConfig validates the news search engine configuration.
// At least two raw hits are needed because the adapter keeps num_results-1 of them.
func validateSearchConfig(get configGetter, errs *[]string) {
	validateOptionalEnum(get, config.KeySearchEngine, []string{"serper", "serp_google"}, errs)
	validateOptionalURL(get, config.KeySearchEndpoint, errs)
	validateOptionalIntMin(get, config.KeySearchNumResults, 2, errs)
	validateOptionalStringNonEmpty(get, config.KeySearchType, errs)
}

func validateCrewConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, config.KeyCrewAgents, errs)
	validateOptionalStringNonEmpty(get, config.KeyCrewTasks, errs)
	validateOptionalStringNonEmpty(get, config.KeyCrewOutputDir, errs)
	validateOptionalIntMin(get, config.KeyCrewMaxIter, 1, errs)
}

func validateSessionConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, config.KeySessionDSN, errs)
	validateOptionalDuration(get, config.KeySessionTTL, errs)
	validateSessionKEKs(get, errs)
}

// validateSessionKEKs validates the key-encryption keys of the session store.
func validateSessionKEKs(get configGetter, errs *[]string) {
	raw := get(config.KeySessionKEKs)
	if raw == nil {
		return
	}

	keks := toStringMap(raw)
	if keks == nil {
		appendValidationError(errs, "%s must be an object", config.KeySessionKEKs)
		return
	}

	for rawID, rawSecret := range keks {
		if _, parseErr := strconv.ParseUint(strings.TrimSpace(rawID), 10, 16); parseErr != nil {
			appendValidationError(errs, "%s.%s must use a uint16 key id", config.KeySessionKEKs, rawID)
			continue
		}

		secret, parseErr := parseStrictString(rawSecret)
		if parseErr != nil {
			appendValidationError(errs, "%s.%s must be a string", config.KeySessionKEKs, rawID)
			continue
		}

		if len(strings.TrimSpace(secret)) <= 16 {
			appendValidationError(errs, "%s.%s must be longer than 16 characters", config.KeySessionKEKs, rawID)
		}
	}
}

func validateWebConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, config.KeyWebMetrics, errs)
	validateOptionalBool(get, config.KeyMCPEnabled, errs)
}

func validateLogConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, config.KeyLogFile, errs)
	validateOptionalInt64Min(get, config.KeyLogMaxBytes, 1, errs)
}

// validateOptionalBool validates an optionally configured boolean key.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalEnum validates an optionally configured string key against allowed values.
// Comparison is case-insensitive.
func validateOptionalEnum(get configGetter, key string, allowed []string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if normalized == candidate {
			return
		}
	}

	appendValidationError(errs, "%s must be one of [%s]", key, strings.Join(allowed, ", "))
}

// validateOptionalDuration validates a duration given as a Go duration string or whole seconds.
func validateOptionalDuration(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if text, ok := raw.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(text)); err == nil {
			if d <= 0 {
				appendValidationError(errs, "%s must be > 0", key)
			}
			return
		}
	}

	seconds, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a duration like 90s or an integer number of seconds", key)
		return
	}
	if seconds < 1 {
		appendValidationError(errs, "%s must be >= 1s", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalInt64Min validates an optionally configured int64 key with a minimum constraint.
func validateOptionalInt64Min(get configGetter, key string, min int64, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictInt64 parses a value as a strict int64.
func parseStrictInt64(value any) (int64, error) {
	parsed, err := parseStrictInt(value)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(parsed), nil
}

// parseStrictString parses a value as a strict string.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// appendValidationError appends a formatted validation error to the collector.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}

func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

// toStringMap converts a decoded YAML object into a string-keyed map, or nil.
func toStringMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out
	default:
		return nil
	}
}
