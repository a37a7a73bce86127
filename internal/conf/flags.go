package conf

import "github.com/spf13/pflag"

// SkipLoadAnnotation marks commands that run without loading the configuration.
const SkipLoadAnnotation = "wildwatch/skip-config-load"

// flagKeyAnnotation stores the config key a flag overrides.
const flagKeyAnnotation = "wildwatch/config-key"

// BindFlag records that flag name overrides config key. The binding is applied by
// FlagKey when the command runs, so commands can share keys without stealing each
// other's viper bindings.
func BindFlag(fs *pflag.FlagSet, name, key string) {
	// SetAnnotation only fails for unknown flags
	if err := fs.SetAnnotation(name, flagKeyAnnotation, []string{key}); err != nil {
		panic("conf: bind unknown flag " + name)
	}
}

// FlagKey returns the config key bound to f by BindFlag.
func FlagKey(f *pflag.Flag) (string, bool) {
	keys, ok := f.Annotations[flagKeyAnnotation]
	if !ok || len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}
