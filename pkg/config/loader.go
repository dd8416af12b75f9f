// Package config loads service configuration into tagged structs. Values
// are resolved in layers, later layers winning:
//
//	envDefault struct tags
//	YAML/JSON config file          (WithFile)
//	.env file                      (WithDotEnv)
//	process environment variables
//
// A .env file never overrides a variable that is already exported, so a
// developer's checked-out .env cannot shadow what the deployment sets.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable.
//   - `envDefault:"value"` sets a default when the field is zero-valued.
//   - `required:"true"` fails validation if the field is still zero after loading.
//
// File-based loading uses the `yaml` and `json` tags.
//
// # Supported Field Types
//
// string and named string types, bool, signed integers, time.Duration,
// time.Time and *time.Time (RFC 3339), and []string (comma-separated).
// A *time.Time field set to an empty string stays nil.
//
// # Usage
//
//	type Settings struct {
//	    Secret   Secret     `env:"JWT_SECRET"`
//	    Cutover  *time.Time `env:"LEGACY_TOKEN_CUTOFF_DATE"`
//	    Legacy   bool       `env:"ENABLE_LEGACY_TOKENS" envDefault:"true"`
//	}
//
//	var s Settings
//	err := config.New().WithDotEnv(".env").Load(&s)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
	timePtrType  = reflect.TypeOf((*time.Time)(nil))
)

// Loader resolves configuration from defaults, an optional file, an
// optional .env file and the process environment. Build one with [New]
// and the With* methods, then call [Loader.Load].
//
// A Loader is not safe for concurrent use.
type Loader struct {
	envPrefix   string
	filePath    string
	dotEnvPaths []string
	lookupEnv   func(string) (string, bool)
}

// New returns a Loader that reads the process environment only.
func New() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// WithEnvPrefix prepends PREFIX_ to every variable name. The prefix is
// uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a YAML (.yaml, .yml) or JSON (.json) file to read. A
// missing file is skipped. Paths containing ".." are rejected.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithDotEnv adds .env files to read with godotenv. Missing files are
// skipped. When a key appears in several files the first one wins, and
// the process environment always wins over every file.
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotEnvPaths = append(l.dotEnvPaths, paths...)
	return l
}

// WithLookup replaces the process-environment lookup. Tests use it to
// load from a map without touching os.Environ.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and then
// validates it: `required` tags first, then [Validator] if cfg
// implements it.
//
// Loading failures return [sserr.CodeInternalConfiguration]. Validation
// failures return [sserr.CodeValidationRequired] or whatever the
// Validator returned.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	lookup, err := l.buildLookup()
	if err != nil {
		return err
	}
	if err := applyEnv(rv, l.envPrefix, lookup); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads a T or panics. Use it in main where bad configuration
// should stop the process.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// buildLookup layers the .env files under the process environment.
func (l *Loader) buildLookup() (func(string) (string, bool), error) {
	base := l.lookupEnv
	if base == nil {
		base = os.LookupEnv
	}
	if len(l.dotEnvPaths) == 0 {
		return base, nil
	}

	dotenv := make(map[string]string)
	for _, p := range l.dotEnvPaths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		vals, err := godotenv.Read(p)
		if err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to read .env file %q", p)
		}
		for k, v := range vals {
			if _, seen := dotenv[k]; !seen {
				dotenv[k] = v
			}
		}
	}

	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// isNested reports whether a struct field should be traversed rather
// than set as a leaf value.
func isNested(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType
}

func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if isNested(sf.Type) {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		def := sf.Tag.Get("envDefault")
		if def == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, def); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

// applyEnv sets fields from their env tags. A nested struct's env tag is
// joined onto the prefix of its children.
func applyEnv(rv reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		tag := sf.Tag.Get("env")

		if isNested(sf.Type) {
			if err := applyEnv(field, joinKey(prefix, tag), lookup); err != nil {
				return err
			}
			continue
		}
		if tag == "" {
			continue
		}

		key := joinKey(prefix, tag)
		val, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}
	return nil
}

func joinKey(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse RFC 3339 time %q: %w", value, err)
	}
	return t, nil
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	switch field.Type() {
	case durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	case timeType:
		t, err := parseTime(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	case timePtrType:
		if strings.TrimSpace(value) == "" {
			field.Set(reflect.Zero(timePtrType))
			return nil
		}
		t, err := parseTime(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(&t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			out.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(out)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
