package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported GPIO drivers.
const (
	DriverSim    = "sim"
	DriverPeriph = "periph"
)

// envPrefix scopes environment overrides, e.g. ROBOT_ROBOT_PORT or ROBOT_GPIO_PIN.
const envPrefix = "ROBOT"

// Config is the full daemon configuration. It is loaded once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Robot       HTTPConfig        `mapstructure:"robot"`
	Admin       HTTPConfig        `mapstructure:"admin"`
	AccessPoint AccessPointConfig `mapstructure:"access_point"`
	GPIO        GPIOConfig        `mapstructure:"gpio"`
	DB          DBConfig          `mapstructure:"db"`
	Log         LogConfig         `mapstructure:"log"`
	Sampler     SamplerConfig     `mapstructure:"sampler"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// AccessPointConfig holds the WiFi hotspot credentials. They are fixed for the
// lifetime of the process.
type AccessPointConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Interface      string `mapstructure:"interface"`
	ConnectionName string `mapstructure:"connection_name"`
	SSID           string `mapstructure:"ssid"`
	Passphrase     string `mapstructure:"passphrase"`
}

type GPIOConfig struct {
	Driver string `mapstructure:"driver"` // sim | periph
	Pin    string `mapstructure:"pin"`    // periph pin name, e.g. GPIO23
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SamplerConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

var (
	ErrInvalidPort       = errors.New("port must be a number between 1 and 65535")
	ErrEmptyPin          = errors.New("gpio.pin is required")
	ErrUnknownDriver     = errors.New("gpio.driver must be sim or periph")
	ErrInvalidSSID       = errors.New("access_point.ssid must be 1-32 bytes")
	ErrInvalidPassphrase = errors.New("access_point.passphrase must be 8-63 characters")
	ErrInvalidTick       = errors.New("sampler.tick must be positive")
)

// setDefaults registers the values used when neither the file nor the
// environment provide one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("robot.port", "80")
	v.SetDefault("admin.port", "8081")

	// Off so a dev host keeps its Wi-Fi; the on-robot config enables it.
	v.SetDefault("access_point.enabled", false)
	v.SetDefault("access_point.interface", "wlan0")
	v.SetDefault("access_point.connection_name", "robot-ap")
	v.SetDefault("access_point.ssid", "besher_robot_mu")
	v.SetDefault("access_point.passphrase", "robot_besher_mi")

	v.SetDefault("gpio.driver", DriverSim)
	v.SetDefault("gpio.pin", "GPIO23")

	v.SetDefault("db.path", "robot.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("sampler.tick", time.Second)
}

// Load reads .env (if present), then the YAML config at path, then ROBOT_*
// environment overrides. A missing config file is not an error; defaults apply.
// An empty path searches ./configs/config.yml.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise fail late, after the pin or
// the access point has already been touched.
func (c Config) Validate() error {
	for name, port := range map[string]string{"robot.port": c.Robot.Port, "admin.port": c.Admin.Port} {
		if !validPort(port) {
			return fmt.Errorf("%s=%q: %w", name, port, ErrInvalidPort)
		}
	}
	if strings.TrimSpace(c.GPIO.Pin) == "" {
		return ErrEmptyPin
	}
	switch c.GPIO.Driver {
	case DriverSim, DriverPeriph:
	default:
		return fmt.Errorf("gpio.driver=%q: %w", c.GPIO.Driver, ErrUnknownDriver)
	}
	if c.AccessPoint.Enabled {
		if n := len(c.AccessPoint.SSID); n < 1 || n > 32 {
			return ErrInvalidSSID
		}
		if n := len(c.AccessPoint.Passphrase); n < 8 || n > 63 {
			return ErrInvalidPassphrase
		}
	}
	if c.Sampler.Tick <= 0 {
		return ErrInvalidTick
	}
	return nil
}

func validPort(p string) bool {
	p = strings.TrimPrefix(p, ":")
	if p == "" || len(p) > 5 {
		return false
	}
	n := 0
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= 1 && n <= 65535
}
