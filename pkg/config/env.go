package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ModeSettings are the tunable parameters of one mode tier.
type ModeSettings struct {
	Model           string
	Provider        string
	ReasoningEffort ReasoningEffort
	Verbosity       Verbosity
	MaxOutputTokens int
}

// ClassifierSettings configure the optional classifier gate.
type ClassifierSettings struct {
	Enabled   bool
	Provider  string
	Model     string
	Timeout   time.Duration
	RPS       float64
	CacheSize int
	CacheTTL  time.Duration
	RedisURL  string
}

// BrainEnvConfig is the fully defaulted router configuration.
type BrainEnvConfig struct {
	Plan        ModeSettings
	PlanPro     ModeSettings
	Consult     ModeSettings
	Batch       ModeSettings
	LongContext ModeSettings

	Thresholds Thresholds
	Classifier ClassifierSettings
	Rubric     Rubric
	Pricing    PricingConfig

	// Source is the config file that was read, if any.
	Source string
	// Issues lists every value that was rejected in favour of its default.
	Issues []ConfigError
}

// ConfigError describes a malformed configuration value. It is recorded and
// logged, never returned to routing callers.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e ConfigError) Unwrap() error { return e.Err }

// ErrConfig matches every ConfigError via errors.Is.
var ErrConfig = errors.New("invalid configuration value")

// Is reports whether target is ErrConfig.
func (e ConfigError) Is(target error) bool { return target == ErrConfig }

// DefaultEnvConfig returns the zero-configuration defaults.
func DefaultEnvConfig() BrainEnvConfig {
	return BrainEnvConfig{
		Plan:        ModeSettings{Model: "gpt-5", ReasoningEffort: EffortMedium, Verbosity: VerbosityMedium, MaxOutputTokens: 8000},
		PlanPro:     ModeSettings{Model: "gpt-5", ReasoningEffort: EffortHigh, Verbosity: VerbosityHigh, MaxOutputTokens: 16000},
		Consult:     ModeSettings{Model: "gpt-5-mini", ReasoningEffort: EffortLow, Verbosity: VerbosityMedium, MaxOutputTokens: 4000},
		Batch:       ModeSettings{Model: "gpt-5-nano", ReasoningEffort: EffortLow, Verbosity: VerbosityLow, MaxOutputTokens: 4000},
		LongContext: ModeSettings{Model: "gpt-4.1", ReasoningEffort: EffortMedium, Verbosity: VerbosityLow, MaxOutputTokens: 6000},
		Thresholds:  DefaultThresholds,
		Classifier: ClassifierSettings{
			Enabled:   true,
			Provider:  "openai",
			Model:     "gpt-5-nano",
			Timeout:   3 * time.Second,
			CacheSize: 512,
			CacheTTL:  time.Hour,
		},
		Rubric:  DefaultRubric(),
		Pricing: DefaultPricing(),
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvConfig reads the router configuration from BRAIN_CONFIG_FILE and the
// process environment. It never fails; rejected values are logged and kept
// in Issues.
func LoadEnvConfig() BrainEnvConfig {
	return LoadEnvConfigFrom(os.LookupEnv)
}

// LoadEnvConfigFrom is LoadEnvConfig with an explicit variable source.
func LoadEnvConfigFrom(lookup LookupFunc) BrainEnvConfig {
	l := &envLoader{cfg: DefaultEnvConfig(), lookup: lookup}

	if path, ok := l.get("BRAIN_CONFIG_FILE"); ok {
		l.applyFile(path)
	}

	l.applyMode("BRAIN_PLAN", &l.cfg.Plan)
	l.applyMode("BRAIN_PLAN_PRO", &l.cfg.PlanPro)
	l.applyMode("BRAIN_CONSULT", &l.cfg.Consult)
	l.applyMode("BRAIN_BATCH", &l.cfg.Batch)
	l.applyMode("BRAIN_LONG_CONTEXT", &l.cfg.LongContext)

	l.positiveInt("BRAIN_LONG_CONTEXT_THRESHOLD", &l.cfg.Thresholds.LongContextTokens)
	l.unitFloat("BRAIN_UNCERTAINTY_LOW", &l.cfg.Thresholds.UncertaintyLow)
	l.unitFloat("BRAIN_UNCERTAINTY_HIGH", &l.cfg.Thresholds.UncertaintyHigh)
	l.nonNegativeInt("BRAIN_CLASSIFIER_MIN_TOKENS", &l.cfg.Thresholds.ClassifierMinTokens)

	l.boolean("BRAIN_CLASSIFIER_ENABLED", &l.cfg.Classifier.Enabled)
	l.str("BRAIN_CLASSIFIER_PROVIDER", &l.cfg.Classifier.Provider)
	l.str("BRAIN_CLASSIFIER_MODEL", &l.cfg.Classifier.Model)
	l.duration("BRAIN_CLASSIFIER_TIMEOUT", &l.cfg.Classifier.Timeout)
	l.nonNegativeFloat("BRAIN_CLASSIFIER_RPS", &l.cfg.Classifier.RPS)
	l.nonNegativeInt("BRAIN_CLASSIFIER_CACHE_SIZE", &l.cfg.Classifier.CacheSize)
	l.duration("BRAIN_CLASSIFIER_CACHE_TTL", &l.cfg.Classifier.CacheTTL)
	l.str("BRAIN_REDIS_URL", &l.cfg.Classifier.RedisURL)

	if l.cfg.Thresholds.UncertaintyLow > l.cfg.Thresholds.UncertaintyHigh {
		l.reject("BRAIN_UNCERTAINTY_LOW",
			strconv.FormatFloat(l.cfg.Thresholds.UncertaintyLow, 'g', -1, 64),
			fmt.Errorf("must not exceed uncertainty high %.2f", l.cfg.Thresholds.UncertaintyHigh))
		l.cfg.Thresholds.UncertaintyLow = DefaultThresholds.UncertaintyLow
		l.cfg.Thresholds.UncertaintyHigh = DefaultThresholds.UncertaintyHigh
	}
	applyThresholdDefaults(&l.cfg.Thresholds)

	for _, issue := range l.cfg.Issues {
		slog.Warn("brain config: using default", "key", issue.Key, "value", issue.Value, "error", issue.Err)
	}
	return l.cfg
}

type envLoader struct {
	cfg    BrainEnvConfig
	lookup LookupFunc
}

func (l *envLoader) get(key string) (string, bool) {
	if l.lookup == nil {
		return "", false
	}
	v, ok := l.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (l *envLoader) reject(key, value string, err error) {
	l.cfg.Issues = append(l.cfg.Issues, ConfigError{Key: key, Value: value, Err: err})
}

func (l *envLoader) str(key string, dst *string) {
	if v, ok := l.get(key); ok {
		*dst = v
	}
}

func (l *envLoader) positiveInt(key string, dst *int) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	if n <= 0 {
		l.reject(key, v, errors.New("must be positive"))
		return
	}
	*dst = n
}

func (l *envLoader) nonNegativeInt(key string, dst *int) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	if n < 0 {
		l.reject(key, v, errors.New("must not be negative"))
		return
	}
	*dst = n
}

var errUnitRange = errors.New("must be within (0,1]")

func (l *envLoader) unitFloat(key string, dst *float64) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	if f <= 0 || f > 1 {
		l.reject(key, v, errUnitRange)
		return
	}
	*dst = f
}

// fileUnit applies a file threshold; zero means unset.
func (l *envLoader) fileUnit(key string, f float64, dst *float64) {
	if f == 0 {
		return
	}
	if f < 0 || f > 1 {
		l.reject(key, strconv.FormatFloat(f, 'g', -1, 64), errUnitRange)
		return
	}
	*dst = f
}

func (l *envLoader) nonNegativeFloat(key string, dst *float64) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	if f < 0 {
		l.reject(key, v, errors.New("must not be negative"))
		return
	}
	*dst = f
}

func (l *envLoader) boolean(key string, dst *bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	*dst = b
}

func (l *envLoader) duration(key string, dst *time.Duration) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		l.reject(key, v, err)
		return
	}
	*dst = d
}

// parseDuration accepts Go duration strings or a bare number of milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		if ms <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func (l *envLoader) applyMode(prefix string, dst *ModeSettings) {
	l.str(prefix+"_MODEL", &dst.Model)
	l.str(prefix+"_PROVIDER", &dst.Provider)
	if v, ok := l.get(prefix + "_EFFORT"); ok {
		if e, err := ParseReasoningEffort(v); err != nil {
			l.reject(prefix+"_EFFORT", v, err)
		} else {
			dst.ReasoningEffort = e
		}
	}
	if v, ok := l.get(prefix + "_VERBOSITY"); ok {
		if vb, err := ParseVerbosity(v); err != nil {
			l.reject(prefix+"_VERBOSITY", v, err)
		} else {
			dst.Verbosity = vb
		}
	}
	l.positiveInt(prefix+"_MAX_TOKENS", &dst.MaxOutputTokens)
}

// fileConfig is the on-disk shape of BRAIN_CONFIG_FILE.
type fileConfig struct {
	Modes      map[string]fileModeSettings `yaml:"modes" toml:"modes"`
	Thresholds Thresholds                  `yaml:"thresholds" toml:"thresholds"`
	Classifier fileClassifierSettings      `yaml:"classifier" toml:"classifier"`
	Rubric     Rubric                      `yaml:"rubric" toml:"rubric"`
	Pricing    PricingConfig               `yaml:"pricing" toml:"pricing"`
}

type fileModeSettings struct {
	Model           string `yaml:"model" toml:"model"`
	Provider        string `yaml:"provider" toml:"provider"`
	ReasoningEffort string `yaml:"reasoning_effort" toml:"reasoning_effort"`
	Verbosity       string `yaml:"verbosity" toml:"verbosity"`
	MaxOutputTokens int    `yaml:"max_output_tokens" toml:"max_output_tokens"`
}

type fileClassifierSettings struct {
	Enabled   *bool   `yaml:"enabled" toml:"enabled"`
	Provider  string  `yaml:"provider" toml:"provider"`
	Model     string  `yaml:"model" toml:"model"`
	Timeout   string  `yaml:"timeout" toml:"timeout"`
	RPS       float64 `yaml:"rps" toml:"rps"`
	CacheSize *int    `yaml:"cache_size" toml:"cache_size"`
	CacheTTL  string  `yaml:"cache_ttl" toml:"cache_ttl"`
	RedisURL  string  `yaml:"redis_url" toml:"redis_url"`
}

func (l *envLoader) applyFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.reject("BRAIN_CONFIG_FILE", path, err)
		return
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		l.reject("BRAIN_CONFIG_FILE", path, err)
		return
	}
	l.cfg.Source = path

	for name, m := range fc.Modes {
		key := "modes." + name
		var dst *ModeSettings
		switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
		case "plan":
			dst = &l.cfg.Plan
		case "plan_pro":
			dst = &l.cfg.PlanPro
		case "consult":
			dst = &l.cfg.Consult
		case "batch":
			dst = &l.cfg.Batch
		case "long_context":
			dst = &l.cfg.LongContext
		default:
			l.reject(key, name, errors.New("unknown mode"))
			continue
		}
		l.applyFileMode(key, m, dst)
	}

	t := fc.Thresholds
	if t.LongContextTokens > 0 {
		l.cfg.Thresholds.LongContextTokens = t.LongContextTokens
	}
	l.fileUnit("thresholds.uncertainty_low", t.UncertaintyLow, &l.cfg.Thresholds.UncertaintyLow)
	l.fileUnit("thresholds.uncertainty_high", t.UncertaintyHigh, &l.cfg.Thresholds.UncertaintyHigh)
	if t.ClassifierMinTokens > 0 {
		l.cfg.Thresholds.ClassifierMinTokens = t.ClassifierMinTokens
	}
	if t.RubricMinScore > 0 {
		l.cfg.Thresholds.RubricMinScore = t.RubricMinScore
	}
	if t.RubricMargin > 0 {
		l.cfg.Thresholds.RubricMargin = t.RubricMargin
	}
	if t.RubricSaturation > 0 {
		l.cfg.Thresholds.RubricSaturation = t.RubricSaturation
	}

	c := fc.Classifier
	if c.Enabled != nil {
		l.cfg.Classifier.Enabled = *c.Enabled
	}
	if c.Provider != "" {
		l.cfg.Classifier.Provider = c.Provider
	}
	if c.Model != "" {
		l.cfg.Classifier.Model = c.Model
	}
	if c.Timeout != "" {
		if d, err := parseDuration(c.Timeout); err != nil {
			l.reject("classifier.timeout", c.Timeout, err)
		} else {
			l.cfg.Classifier.Timeout = d
		}
	}
	if c.RPS > 0 {
		l.cfg.Classifier.RPS = c.RPS
	}
	if c.CacheSize != nil && *c.CacheSize >= 0 {
		l.cfg.Classifier.CacheSize = *c.CacheSize
	}
	if c.CacheTTL != "" {
		if d, err := parseDuration(c.CacheTTL); err != nil {
			l.reject("classifier.cache_ttl", c.CacheTTL, err)
		} else {
			l.cfg.Classifier.CacheTTL = d
		}
	}
	if c.RedisURL != "" {
		l.cfg.Classifier.RedisURL = c.RedisURL
	}

	l.cfg.Rubric = mergeRubric(l.cfg.Rubric, fc.Rubric)
	for model, price := range fc.Pricing {
		l.cfg.Pricing[model] = price
	}
}

func (l *envLoader) applyFileMode(key string, m fileModeSettings, dst *ModeSettings) {
	if m.Model != "" {
		dst.Model = m.Model
	}
	if m.Provider != "" {
		dst.Provider = m.Provider
	}
	if m.ReasoningEffort != "" {
		if e, err := ParseReasoningEffort(m.ReasoningEffort); err != nil {
			l.reject(key+".reasoning_effort", m.ReasoningEffort, err)
		} else {
			dst.ReasoningEffort = e
		}
	}
	if m.Verbosity != "" {
		if v, err := ParseVerbosity(m.Verbosity); err != nil {
			l.reject(key+".verbosity", m.Verbosity, err)
		} else {
			dst.Verbosity = v
		}
	}
	switch {
	case m.MaxOutputTokens > 0:
		dst.MaxOutputTokens = m.MaxOutputTokens
	case m.MaxOutputTokens < 0:
		l.reject(key+".max_output_tokens", strconv.Itoa(m.MaxOutputTokens), errors.New("must be positive"))
	}
}
