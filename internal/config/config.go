package config

import (
	"os"
	"path/filepath"

	"github.com/downstream-dev/downstream/internal/env"
	"github.com/spf13/viper"
)

var (
	vCfg   = viper.New()
	cfgDir string
)

func Load() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	cfgDir = filepath.Join(home, ".downstream")

	vCfg.SetConfigName("config")
	vCfg.SetConfigType("yaml")
	vCfg.AddConfigPath(cfgDir)

	if err := vCfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

// Diff3Bin returns the external merge binary to invoke. The environment
// variable takes precedence over the user config file.
func Diff3Bin() string {
	if bin := env.Diff3Bin(); bin != "" {
		return bin
	}

	if bin := vCfg.GetString("diff3_bin"); bin != "" {
		return bin
	}

	return "diff3"
}

// MergeEngine returns the configured merge engine, either "text" for the
// built-in three-way merger or "diff3" for the external binary.
func MergeEngine() string {
	if engine := vCfg.GetString("merge_engine"); engine != "" {
		return engine
	}

	return "text"
}

func LogLevel() string {
	return vCfg.GetString("log_level")
}

func SetMergeEngine(engine string) error {
	vCfg.Set("merge_engine", engine)
	return save()
}

func SetDiff3Bin(bin string) error {
	vCfg.Set("diff3_bin", bin)
	return save()
}

func save() error {
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return err
	}

	if err := vCfg.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}

		if err := vCfg.SafeWriteConfig(); err != nil {
			return err
		}
	}

	return nil
}
