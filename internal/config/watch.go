package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchLogLevel applies log.level from the optional config file and keeps
// watching the file so the level can be changed without a restart.
func WatchLogLevel(cfg Config, level zap.AtomicLevel, log *zap.Logger) error {
	if cfg.ConfigFile == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile)
	v.SetEnvPrefix("ROLLCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			log.Warn("config file not found, log level stays static", zap.String("path", cfg.ConfigFile))
			return nil
		}
		return err
	}
	ApplyLogLevel(v, level, log)

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		ApplyLogLevel(v, level, log)
	})
	v.WatchConfig()
	return nil
}

// ApplyLogLevel sets level from the log.level key. Unknown values are ignored.
func ApplyLogLevel(v *viper.Viper, level zap.AtomicLevel, log *zap.Logger) bool {
	raw := strings.ToLower(strings.TrimSpace(v.GetString("log.level")))
	if raw == "" {
		return false
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(raw)); err != nil {
		if log != nil {
			log.Warn("ignoring invalid log level from config file", zap.String("level", raw))
		}
		return false
	}
	if level.Level() == parsed {
		return false
	}

	level.SetLevel(parsed)
	if log != nil {
		log.Info("log level changed", zap.String("level", parsed.String()))
	}
	return true
}
