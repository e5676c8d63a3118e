// Package config loads the service configuration from YAML and the
// environment and builds the component configs from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fieldfiller/stegano"
	"github.com/fieldfiller/stegano/internal/revocation"
	"github.com/fieldfiller/stegano/internal/store"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Environment variables consulted by ApplyEnv
const (
	EnvAlgorithm          = "STEGANO_ALGO"
	EnvQIMDelta           = "STEGANO_QIM_DELTA"
	EnvDCTStrength        = "STEGANO_DCT_STRENGTH"
	EnvMasterKey          = stegano.DefaultMasterKeyEnv
	EnvPreviousMasterKeys = "STEGANO_PREVIOUS_MASTER_KEYS"
	EnvCipher             = "STEGANO_CIPHER"
	EnvDataDir            = "STEGANO_DATA_DIR"
	EnvWorkers            = "STEGANO_WORKERS"
	EnvTokenTTL           = "STEGANO_TOKEN_TTL"
	EnvLogLevel           = "STEGANO_LOG_LEVEL"
)

const (
	DefaultDataDir  = ".stegano"
	DefaultLogLevel = "info"
)

var ErrMissingMasterKey = errors.New("master key is not configured")

type Config struct {
	Algorithm          string        `yaml:"algorithm"`
	QIMDelta           float64       `yaml:"qim_delta"`
	DCTStrength        float64       `yaml:"dct_strength"`
	JPEGQuality        int           `yaml:"jpeg_quality"`
	MasterKey          string        `yaml:"master_key"`
	PreviousMasterKeys []string      `yaml:"previous_master_keys"`
	Cipher             string        `yaml:"cipher"`
	DataDir            string        `yaml:"data_dir"`
	Workers            int           `yaml:"workers"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	LogLevel           string        `yaml:"log_level"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Algorithm: stegano.AlgorithmF5.String(),
		DataDir:   DefaultDataDir,
		TokenTTL:  revocation.DefaultTTL,
		LogLevel:  DefaultLogLevel,
	}
}

// Parse decodes YAML on top of the defaults
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	return c, nil
}

// Load reads and parses the YAML file at path
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config: %w", err)
	}
	return Parse(data)
}

// ApplyEnv overrides fields with the environment variables lookup reports.
// os.LookupEnv is the usual lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = f
		return nil
	}

	str(EnvAlgorithm, &c.Algorithm)
	str(EnvMasterKey, &c.MasterKey)
	str(EnvCipher, &c.Cipher)
	str(EnvDataDir, &c.DataDir)
	str(EnvLogLevel, &c.LogLevel)

	if v, ok := lookup(EnvPreviousMasterKeys); ok {
		c.PreviousMasterKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.PreviousMasterKeys = append(c.PreviousMasterKeys, k)
			}
		}
	}

	if err := float(EnvQIMDelta, &c.QIMDelta); err != nil {
		return err
	}
	if err := float(EnvDCTStrength, &c.DCTStrength); err != nil {
		return err
	}

	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvTokenTTL); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTokenTTL, err)
		}
		c.TokenTTL = d
	}
	return nil
}

// Validate checks every field. A missing or malformed master key is an error
// so a misconfigured service fails at start rather than on first use.
func (c *Config) Validate() error {
	if c.MasterKey == "" {
		return fmt.Errorf("%w: set %s or master_key", ErrMissingMasterKey, EnvMasterKey)
	}
	if _, err := stegano.ParseMasterKey(c.MasterKey); err != nil {
		return err
	}
	for i, k := range c.PreviousMasterKeys {
		if _, err := stegano.ParseMasterKey(k); err != nil {
			return fmt.Errorf("previous master key %d: %w", i, err)
		}
	}
	if _, err := stegano.ParseCipherSuite(c.Cipher); err != nil {
		return err
	}
	if _, err := c.SteganoConfig(nil); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if c.TokenTTL < 0 {
		return errors.New("token ttl cannot be negative")
	}
	if _, err := logrus.ParseLevel(c.levelName()); err != nil {
		return err
	}
	return nil
}

func (c *Config) levelName() string {
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.LogLevel
}

// Logger returns a logrus logger at the configured level
func (c *Config) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.levelName())
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	return l, nil
}

// SteganoConfig builds the validated façade config
func (c *Config) SteganoConfig(logger *logrus.Logger) (*stegano.Config, error) {
	alg, err := stegano.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return nil, err
	}
	sc := &stegano.Config{
		Algorithm:   alg,
		Strength:    c.DCTStrength,
		Delta:       c.QIMDelta,
		JPEGQuality: c.JPEGQuality,
		Logger:      logger,
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// KeyRing builds the identifier key ring: the master key seals, previous
// keys only open
func (c *Config) KeyRing() (*stegano.KeyRing, error) {
	suite, err := stegano.ParseCipherSuite(c.Cipher)
	if err != nil {
		return nil, err
	}
	return stegano.NewKeyRingFromHex(suite, c.MasterKey, c.PreviousMasterKeys...)
}

// ParallelConfig sizes the worker pool; zero workers means one per CPU
func (c *Config) ParallelConfig(logger *logrus.Logger) stegano.ParallelConfig {
	pc := stegano.DefaultParallelConfig()
	if c.Workers > 0 {
		pc.MaxWorkers = c.Workers
	}
	pc.Logger = logger
	return pc
}

// StoreConfig places the record store under the data directory
func (c *Config) StoreConfig(logger *logrus.Logger) store.Config {
	return store.Config{
		Dir:    filepath.Join(c.DataDir, "records"),
		Logger: logger,
	}
}
