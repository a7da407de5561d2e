package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/secondbreakfast/conductor/internal/templates"
	"github.com/secondbreakfast/conductor/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const envPrefix = "CONDUCTOR"

type Config struct {
	Port          int              `mapstructure:"port"`
	Host          string           `mapstructure:"host"`
	HomeDir       string           `mapstructure:"home_dir"`
	Environment   string           `mapstructure:"environment"`
	AssetsDir     string           `mapstructure:"assets_dir"`
	TempDir       string           `mapstructure:"temp_dir"`
	PublicURL     string           `mapstructure:"public_url"`
	PublicDir     string           `mapstructure:"public_dir"`
	Filesystem    string           `mapstructure:"filesystem_type"`
	EnableSafety  bool             `mapstructure:"enable_safety_filter"`
	DB            *DBConfig        `mapstructure:"db"`
	S3            *S3Config        `mapstructure:"s3"`
	MQ            *MQConfig        `mapstructure:"mq"`
	Pulsar        *PulsarConfig    `mapstructure:"pulsar"`
	Runner        *RunnerConfig    `mapstructure:"runner"`
	Providers     *ProvidersConfig `mapstructure:"providers"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type S3Config struct {
	Folder    string `mapstructure:"folder"`
	Region    string `mapstructure:"region_name"`
	Bucket    string `mapstructure:"bucket_name"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PublicUrl string `mapstructure:"public_url"`
	Endpoint  string `mapstructure:"endpoint_url"`
}

type MQConfig struct {
	Type string `mapstructure:"type"`
}

type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

type RunnerConfig struct {
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
	PendingTimeoutMin int `mapstructure:"pending_timeout_minutes"`
	PollIntervalSec   int `mapstructure:"poll_interval_seconds"`
	PollMaxAttempts   int `mapstructure:"poll_max_attempts"`
}

type ProvidersConfig struct {
	OpenAI    *ProviderKey  `mapstructure:"openai"`
	BFL       *ProviderKey  `mapstructure:"bfl"`
	Luma      *ProviderKey  `mapstructure:"luma"`
	Runway    *ProviderKey  `mapstructure:"runway"`
	Replicate *ProviderKey  `mapstructure:"replicate"`
	Google    *GoogleConfig `mapstructure:"google"`
}

type ProviderKey struct {
	APIKey string `mapstructure:"api_key"`
}

type GoogleConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Location        string `mapstructure:"location"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

var config *Config

func InitConfig() error {
	homeDir, err := getHomeDir()
	if err != nil {
		return err
	}

	assetsDir, err := getAssetsDir(homeDir)
	if err != nil {
		return err
	}

	tempDir, err := getTempDir(homeDir)
	if err != nil {
		return err
	}

	// Set the home directory, assets directory, and temp directory in viper
	viper.Set("home_dir", homeDir)
	viper.Set("assets_dir", assetsDir)
	viper.Set("temp_dir", tempDir)

	envFile := filepath.Join(homeDir, ".env")
	configFile := filepath.Join(homeDir, "config.yaml")

	if _, err := os.Stat(envFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat .env file: %w", err)
		}

		if err := templates.WriteEnv(envFile); err != nil {
			return fmt.Errorf("failed to create .env file: %w", err)
		}
	}

	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config.yaml file: %w", err)
		}

		if err := templates.WriteConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config.yaml file: %w", err)
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	bindProviderEnv()
	viper.SetConfigFile(configFile)

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

// Provider credentials are also read from their conventional bare
// environment variables, so existing shells keep working.
func bindProviderEnv() {
	viper.BindEnv("providers.openai.api_key", "CONDUCTOR_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("providers.bfl.api_key", "CONDUCTOR_PROVIDERS_BFL_API_KEY", "BFL_API_KEY")
	viper.BindEnv("providers.luma.api_key", "CONDUCTOR_PROVIDERS_LUMA_API_KEY", "LUMA_API_KEY", "LUMAAI_API_KEY")
	viper.BindEnv("providers.runway.api_key", "CONDUCTOR_PROVIDERS_RUNWAY_API_KEY", "RUNWAY_API_KEY", "RUNWAYML_API_SECRET")
	viper.BindEnv("providers.replicate.api_key", "CONDUCTOR_PROVIDERS_REPLICATE_API_KEY", "REPLICATE_API_KEY", "REPLICATE_API_TOKEN")
	viper.BindEnv("providers.google.project_id", "CONDUCTOR_PROVIDERS_GOOGLE_PROJECT_ID", "GOOGLE_PROJECT_ID")
	viper.BindEnv("providers.google.location", "CONDUCTOR_PROVIDERS_GOOGLE_LOCATION", "GOOGLE_LOCATION")
	viper.BindEnv("providers.google.credentials_file", "CONDUCTOR_PROVIDERS_GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	viper.BindEnv("db.dsn", "CONDUCTOR_DB_DSN", "DATABASE_URL")
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}
	applyDefaults(config)

	return nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

func applyDefaults(c *Config) {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Filesystem == "" {
		c.Filesystem = FilesystemLocal
	}
	if c.DB == nil {
		c.DB = &DBConfig{}
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.DSN == "" {
		c.DB.DSN = "file:" + filepath.Join(c.HomeDir, "conductor.db")
	}
	if c.MQ == nil {
		c.MQ = &MQConfig{}
	}
	if c.MQ.Type == "" {
		c.MQ.Type = "inmemory"
	}
	if c.Runner == nil {
		c.Runner = &RunnerConfig{}
	}
	if c.Runner.MaxConcurrentRuns <= 0 {
		c.Runner.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if c.Runner.PendingTimeoutMin == 0 {
		c.Runner.PendingTimeoutMin = DefaultPendingTimeoutMin
	}
	if c.Runner.PollIntervalSec <= 0 {
		c.Runner.PollIntervalSec = DefaultPollIntervalSec
	}
	if c.Runner.PollMaxAttempts <= 0 {
		c.Runner.PollMaxAttempts = DefaultPollMaxAttempts
	}
	if c.Providers == nil {
		c.Providers = &ProvidersConfig{}
	}
}

// Returns the conductor home directory path.
// It attempts to retrieve it from the following sources in order:
// 1. The `home_dir` flag from viper.
// 2. The `CONDUCTOR_HOME` environment variable.
// 3. The default home directory.
func getHomeDir() (string, error) {
	homeDir := viper.GetString("home_dir")
	if homeDir == "" {
		homeDir = os.Getenv("CONDUCTOR_HOME")
		if homeDir == "" {
			homeDir = DefaultHomeDir
		}
	}

	homeDir, err := pathutil.ExpandPath(homeDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand home path: %w", err)
	}

	if err := templates.CreateHomeDirs(homeDir); err != nil {
		return "", err
	}

	return homeDir, nil
}

func getAssetsDir(homeDir string) (string, error) {
	if homeDir == "" {
		return "", ErrHomeDirNotSet
	}

	assetsDir := viper.GetString("assets_dir")
	if assetsDir == "" {
		assetsDir = filepath.Join(homeDir, "assets")
	}

	assetsDir, err := pathutil.ExpandPath(assetsDir)
	if err != nil {
		return "", ErrHomeDirExpandFailed
	}

	return assetsDir, nil
}

func getTempDir(homeDir string) (string, error) {
	if homeDir == "" {
		return "", ErrHomeDirNotSet
	}

	tempDir := viper.GetString("temp_dir")
	if tempDir == "" {
		tempDir = filepath.Join(homeDir, "temp")
	}

	tempDir, err := pathutil.ExpandPath(tempDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand temp path: %w", err)
	}

	return tempDir, nil
}
