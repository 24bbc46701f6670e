package config

import "reflect"

// EnvVar describes one environment setting.
type EnvVar struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// EnvVars lists the settings Load reads, in field order.
func EnvVars() []EnvVar {
	t := reflect.TypeOf(Config{})
	vars := make([]EnvVar, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := f.Tag.Lookup("envconfig")
		if !ok {
			continue
		}
		vars = append(vars, EnvVar{
			Key:         envPrefix + "_" + name,
			Type:        f.Type.String(),
			Default:     f.Tag.Get("default"),
			Required:    f.Tag.Get("required") == "true",
			Description: f.Tag.Get("desc"),
		})
	}
	return vars
}
