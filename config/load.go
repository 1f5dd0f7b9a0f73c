package config

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// defaults mirrors NewConfig for the keys viper must know about so
// that environment variables can override them.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"brokers":            []string{"localhost:9092"},
		"group_id":           "",
		"topic":              "",
		"message_timeout_ms": DefaultMessageTimeoutMs,
		"max_message_size":   DefaultMaxMessageSize,
		"auto_offset_reset":  string(OffsetResetEarliest),
		"reconnect_count":    DefaultReconnectCount,
		"reconnect_sleep_ms": DefaultReconnectSleepMs,
		"log_level":          string(LogError),
		// Optional keys, registered so that AutomaticEnv sees them.
		"partition_eof":      nil,
		"session_timeout_ms": nil,
		"auto_commit":        nil,
	}
}

// Load reads a Config from the file at path (if not empty) and from
// environment variables prefixed with envPrefix, on top of the
// NewConfig defaults. For example, with the prefix "RELAY",
// RELAY_BROKERS=k1:9092,k2:9092 sets the broker list.
// The result is validated before being returned.
func Load(path, envPrefix string) (Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "cannot read config %q", path)
		}
	}

	var c Config
	if err := decode(v.AllSettings(), &c); err != nil {
		return Config{}, errors.Wrap(err, "cannot decode config")
	}
	c.AutoOffsetReset = OffsetReset(strings.ToLower(string(c.AutoOffsetReset)))
	c.LogLevel = LogLevel(strings.ToUpper(string(c.LogLevel)))

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decode(input map[string]interface{}, target *Config) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			stringToBoolHook,
		),
	})
	if err != nil {
		return err
	}
	return d.Decode(input)
}

func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}
