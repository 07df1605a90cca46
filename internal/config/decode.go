package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

var (
	levelType    = reflect.TypeOf(zapcore.Level(0))
	formatType   = reflect.TypeOf(Format(""))
	timeType     = reflect.TypeOf(time.Time{})
	levelAliases = map[string]zapcore.Level{
		"warning": zapcore.WarnLevel,
		"trace":   zapcore.DebugLevel,
	}
)

// decode maps settings onto out using the tags and hooks shared by both passes.
func decode(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			levelHook,
			formatHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	return decoder.Decode(settings)
}

// ParseLevel parses a case-insensitive level name. An empty name is info.
func ParseLevel(text string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(text))
	if level, ok := levelAliases[name]; ok {
		return level, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", text, err)
	}
	return level, nil
}

// ParseFormat parses a case-insensitive format name.
func ParseFormat(text string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(text))); format {
	case FormatJSON, FormatText:
		return format, nil
	default:
		return "", fmt.Errorf("invalid log format %q: expected json or text", text)
	}
}

// levelHook rejects every non-string token so that numbers and booleans
// never reach the weakly typed integer conversion.
func levelHook(_, to reflect.Type, data any) (any, error) {
	if to != levelType || data == nil {
		return data, nil
	}
	if text, ok := data.(string); ok {
		return ParseLevel(text)
	}
	return nil, fmt.Errorf("invalid log level %v: expected a level name", data)
}

func formatHook(_, to reflect.Type, data any) (any, error) {
	if to != formatType || data == nil {
		return data, nil
	}
	if text, ok := data.(string); ok {
		return ParseFormat(text)
	}
	return nil, fmt.Errorf("invalid log format %v: expected json or text", data)
}

// bindEnv wires the environment layer into v. Keys known from the struct
// shape of root are bound explicitly so that values which only exist in the
// environment still reach the decoder. When the application section has no
// fixed shape, every prefixed variable is bound as well.
func (l *Loader) bindEnv(v *viper.Viper, root reflect.Type, open bool) error {
	if strings.ContainsAny(l.envPrefix, "= \t") {
		return fmt.Errorf("invalid environment prefix %q", l.envPrefix)
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envSeparator))
	v.AutomaticEnv()

	bound := make(map[string]struct{})
	for _, key := range collectKeys(root, "", nil) {
		name := envName(l.envPrefix, key)
		if err := v.BindEnv(key, name); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
		bound[name] = struct{}{}
	}

	if !open || l.envPrefix == "" {
		return nil
	}
	for key, name := range prefixedKeys(os.Environ(), l.envPrefix, bound) {
		if err := v.BindEnv(key, name); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// prefixedKeys maps a dotted key to the name of every variable carrying
// prefix, skipping names in bound. APP_CACHE_TTL becomes cache.ttl.
func prefixedKeys(environ []string, prefix string, bound map[string]struct{}) map[string]string {
	lead := strings.ToUpper(prefix) + envSeparator

	keys := make(map[string]string)
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(name), lead) {
			continue
		}
		if _, seen := bound[name]; seen {
			continue
		}
		rest := name[len(lead):]
		if rest == "" {
			continue
		}
		keys[strings.ToLower(strings.ReplaceAll(rest, envSeparator, "."))] = name
	}
	return keys
}

// hasFixedShape reports whether t, after dereferencing, is a struct whose
// keys can be enumerated from its tags.
func hasFixedShape(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// collectKeys lists the dotted key path of every leaf field reachable from t.
func collectKeys(t reflect.Type, prefix string, keys []string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		if prefix != "" {
			keys = append(keys, prefix)
		}
		return keys
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, squash := fieldKey(field)
		if name == "-" {
			continue
		}
		next := prefix
		if !squash {
			next = joinKey(prefix, name)
		}
		keys = collectKeys(field.Type, next, keys)
	}
	return keys
}

func fieldKey(field reflect.StructField) (string, bool) {
	parts := strings.Split(field.Tag.Get("mapstructure"), ",")
	name := parts[0]
	squash := false
	for _, opt := range parts[1:] {
		if opt == "squash" {
			squash = true
		}
	}
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name, squash
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
