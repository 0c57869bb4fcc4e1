package am

import (
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/postpulse/errors"
)

const redacted = "********"

// RenderTOML renders the effective settings of v as TOML with credentials
// masked.
func RenderTOML(v *viper.Viper) ([]byte, error) {
	settings := v.AllSettings()
	for _, key := range sensitiveKeys {
		redact(settings, strings.Split(key, "."))
	}

	out, err := toml.Marshal(settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render config as TOML")
	}
	return out, nil
}

func redact(settings map[string]interface{}, path []string) {
	if len(path) == 0 {
		return
	}
	value, ok := settings[path[0]]
	if !ok {
		return
	}
	if len(path) == 1 {
		if s, isString := value.(string); isString && s != "" {
			settings[path[0]] = redacted
		}
		return
	}
	if nested, isMap := value.(map[string]interface{}); isMap {
		redact(nested, path[1:])
	}
}
