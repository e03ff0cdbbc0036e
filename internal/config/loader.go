package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// mirrorEnvCase exposes every environment variable in both upper and lower case.
func mirrorEnvCase() {
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		k, v := kv[:i], kv[i+1:]
		_ = os.Setenv(strings.ToUpper(k), v)
		_ = os.Setenv(strings.ToLower(k), v)
	}
}

func loadDotenvIfExists(filename string, overload bool) (bool, error) {
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if overload {
		return true, godotenv.Overload(filename)
	}
	return true, godotenv.Load(filename)
}

func readConfigIfExists(path string, merge bool) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	viper.SetConfigFile(path)
	var err error
	if merge {
		err = viper.MergeInConfig()
	} else {
		err = viper.ReadInConfig()
	}
	if err == nil {
		return true, nil
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

// Profile returns the lower-cased APP_ENV, defaulting to "dev".
func Profile() string {
	for _, k := range []string{"APP_ENV", "app_env"} {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return "dev"
}

// Load reads configuration from the working directory.
func Load() error {
	return LoadFrom(".")
}

// LoadFrom reads, in order of increasing precedence, dir/.env, dir/.<profile>.env,
// dir/conf/config.toml, dir/conf/<profile>.config.toml and the process environment.
// Environment keys use "__" in place of "." (RELAY__HTTP_PORT for relay.http_port).
func LoadFrom(dir string) error {
	envFound, err := loadDotenvIfExists(filepath.Join(dir, ".env"), false)
	if err != nil {
		return errors.Wrap(err, "failed to load .env")
	}
	if envFound {
		mirrorEnvCase()
	}
	profile := Profile()

	pfFound, err := loadDotenvIfExists(filepath.Join(dir, "."+profile+".env"), true)
	if err != nil {
		return errors.Wrapf(err, "failed to load .%s.env", profile)
	}
	if pfFound {
		mirrorEnvCase()
	}

	cfgFound, err := readConfigIfExists(filepath.Join(dir, "conf", "config.toml"), false)
	if err != nil {
		return errors.Wrap(err, "failed to read conf/config.toml")
	}

	if !envFound && !cfgFound {
		return errors.New("no configuration sources found: missing both .env and conf/config.toml")
	}

	if _, err = readConfigIfExists(filepath.Join(dir, "conf", profile+".config.toml"), true); err != nil {
		return errors.Wrapf(err, "failed to read conf/%s.config.toml", profile)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()
	return nil
}
