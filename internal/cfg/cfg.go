package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"autovaluate/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ArtifactPath  string
	ReferencePath string
	DatasetPath   string
	HTTPPort      int
	MetricsPort   int
	LogLevel      string
	SampleSize    int
	Market        MarketSettings
	Comparison    ComparisonSettings
	Forest        ForestSettings
}

type ComparisonSettings struct {
	EngineTolerance float64 `yaml:"engineTolerance"`
	MinComparables  int     `yaml:"minComparables"`
	VerdictBand     float64 `yaml:"verdictBand"`
}

type ForestSettings struct {
	Trees          int   `yaml:"trees"`
	Seed           int64 `yaml:"seed"`
	MaxDepth       int   `yaml:"maxDepth"`
	MinSamplesLeaf int   `yaml:"minSamplesLeaf"`
}

type ConfigFile struct {
	Artifacts struct {
		ModelPath     string `yaml:"modelPath"`
		ReferencePath string `yaml:"referencePath"`
		DatasetPath   string `yaml:"datasetPath"`
		SampleSize    int    `yaml:"sampleSize"`
	} `yaml:"artifacts"`

	Server struct {
		HTTPPort    int    `yaml:"httpPort"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"server"`

	Market struct {
		ExchangeRate float64        `yaml:"exchangeRate"`
		KmPerMile    float64        `yaml:"kmPerMile"`
		UK           RegionDefaults `yaml:"uk"`
		India        RegionDefaults `yaml:"india"`
	} `yaml:"market"`

	Comparison ComparisonSettings `yaml:"comparison"`

	// Seed is a pointer so that an explicit seed of 0 is kept.
	Forest struct {
		Trees          int    `yaml:"trees"`
		Seed           *int64 `yaml:"seed"`
		MaxDepth       int    `yaml:"maxDepth"`
		MinSamplesLeaf int    `yaml:"minSamplesLeaf"`
	} `yaml:"forest"`
}

// Load reads settings from CONFIG_FILE when set, otherwise from the
// environment. A .env file in the working directory is applied first.
func Load() (Settings, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		ArtifactPath:  getEnvOrDefault(common.EnvArtifactPath, orString(config.Artifacts.ModelPath, common.DefaultArtifactPath)),
		ReferencePath: getEnvOrDefault(common.EnvReferencePath, orString(config.Artifacts.ReferencePath, common.DefaultReferencePath)),
		DatasetPath:   getEnvOrDefault(common.EnvDatasetPath, orString(config.Artifacts.DatasetPath, common.DefaultDatasetPath)),
		HTTPPort:      getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		MetricsPort:   getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, orString(config.Server.LogLevel, common.DefaultLogLevel)),
		SampleSize:    getIntFromEnvOrConfig(common.EnvSampleSize, config.Artifacts.SampleSize, common.DefaultSampleSize),
		Market: MarketSettings{
			ExchangeRate: getFloatFromEnvOrConfig(common.EnvExchangeRate, config.Market.ExchangeRate, common.DefaultExchangeRate),
			KmPerMile:    getFloatFromEnvOrConfig(common.EnvKmPerMile, config.Market.KmPerMile, common.DefaultKmPerMile),
			UK: RegionDefaults{
				Tax: getFloatFromEnvOrConfig(common.EnvUKDefaultTax, config.Market.UK.Tax, common.DefaultTax),
				MPG: getFloatFromEnvOrConfig(common.EnvUKDefaultMPG, config.Market.UK.MPG, common.DefaultMPG),
			},
			India: RegionDefaults{
				Tax: getFloatFromEnvOrConfig(common.EnvINDefaultTax, config.Market.India.Tax, common.DefaultTax),
				MPG: getFloatFromEnvOrConfig(common.EnvINDefaultMPG, config.Market.India.MPG, common.DefaultMPG),
			},
		},
		Comparison: ComparisonSettings{
			EngineTolerance: getFloatFromEnvOrConfig(common.EnvEngineTolerance, config.Comparison.EngineTolerance, common.DefaultEngineTolerance),
			MinComparables:  getIntFromEnvOrConfig(common.EnvMinComparables, config.Comparison.MinComparables, common.DefaultMinComparables),
			VerdictBand:     getFloatFromEnvOrConfig(common.EnvVerdictBand, config.Comparison.VerdictBand, common.DefaultVerdictBand),
		},
		Forest: ForestSettings{
			Trees:          getIntFromEnvOrConfig(common.EnvTrees, config.Forest.Trees, common.DefaultTrees),
			Seed:           getSeed(config.Forest.Seed),
			MaxDepth:       getIntFromEnvOrConfig(common.EnvMaxDepth, config.Forest.MaxDepth, common.DefaultMaxDepth),
			MinSamplesLeaf: getIntFromEnvOrConfig(common.EnvMinSamplesLeaf, config.Forest.MinSamplesLeaf, common.DefaultMinSamplesLeaf),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ArtifactPath:  getEnvOrDefault(common.EnvArtifactPath, common.DefaultArtifactPath),
		ReferencePath: getEnvOrDefault(common.EnvReferencePath, common.DefaultReferencePath),
		DatasetPath:   getEnvOrDefault(common.EnvDatasetPath, common.DefaultDatasetPath),
		HTTPPort:      getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		MetricsPort:   getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		SampleSize:    getIntOrDefault(common.EnvSampleSize, common.DefaultSampleSize),
		Market:        DefaultMarketSettings(),
		Comparison: ComparisonSettings{
			EngineTolerance: getFloatOrDefault(common.EnvEngineTolerance, common.DefaultEngineTolerance),
			MinComparables:  getIntOrDefault(common.EnvMinComparables, common.DefaultMinComparables),
			VerdictBand:     getFloatOrDefault(common.EnvVerdictBand, common.DefaultVerdictBand),
		},
		Forest: ForestSettings{
			Trees:          getIntOrDefault(common.EnvTrees, common.DefaultTrees),
			Seed:           getSeed(nil),
			MaxDepth:       getIntOrDefault(common.EnvMaxDepth, common.DefaultMaxDepth),
			MinSamplesLeaf: getIntOrDefault(common.EnvMinSamplesLeaf, common.DefaultMinSamplesLeaf),
		},
	}
	settings.Market.ExchangeRate = getFloatOrDefault(common.EnvExchangeRate, settings.Market.ExchangeRate)
	settings.Market.KmPerMile = getFloatOrDefault(common.EnvKmPerMile, settings.Market.KmPerMile)
	settings.Market.UK.Tax = getFloatOrDefault(common.EnvUKDefaultTax, settings.Market.UK.Tax)
	settings.Market.UK.MPG = getFloatOrDefault(common.EnvUKDefaultMPG, settings.Market.UK.MPG)
	settings.Market.India.Tax = getFloatOrDefault(common.EnvINDefaultTax, settings.Market.India.Tax)
	settings.Market.India.MPG = getFloatOrDefault(common.EnvINDefaultMPG, settings.Market.India.MPG)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// getSeed prefers FOREST_SEED, then the config value, then the default.
// Zero is a valid seed at every level.
func getSeed(configValue *int64) int64 {
	if v := os.Getenv(common.EnvSeed); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	if configValue != nil {
		return *configValue
	}
	return common.DefaultSeed
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings range-checks every configuration value
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ArtifactPath) == "" {
		return fmt.Errorf("artifact path cannot be empty")
	}
	if strings.TrimSpace(settings.ReferencePath) == "" {
		return fmt.Errorf("reference path cannot be empty")
	}

	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.HTTPPort == settings.MetricsPort {
		return fmt.Errorf("HTTP port and metrics port must differ, both are %d", settings.HTTPPort)
	}

	if settings.SampleSize <= 0 || settings.SampleSize > common.MaxSampleSize {
		return fmt.Errorf("reference sample size must be between 1 and %d, got %d", common.MaxSampleSize, settings.SampleSize)
	}

	if err := settings.Market.Validate(); err != nil {
		return err
	}

	c := settings.Comparison
	if c.EngineTolerance < 0 || c.EngineTolerance > common.MaxTolerance {
		return fmt.Errorf("engine tolerance must be between 0 and %.1f, got %f", common.MaxTolerance, c.EngineTolerance)
	}
	if c.MinComparables < 1 || c.MinComparables > common.MaxMinComparable {
		return fmt.Errorf("minimum comparables must be between 1 and %d, got %d", common.MaxMinComparable, c.MinComparables)
	}
	if c.VerdictBand <= 0 || c.VerdictBand > common.MaxVerdictBand {
		return fmt.Errorf("verdict band must be between 0 and %.1f, got %f", common.MaxVerdictBand, c.VerdictBand)
	}

	f := settings.Forest
	if f.Trees <= 0 || f.Trees > common.MaxTrees {
		return fmt.Errorf("forest size must be between 1 and %d, got %d", common.MaxTrees, f.Trees)
	}
	if f.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative, got %d", f.MaxDepth)
	}
	if f.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples per leaf must be at least 1, got %d", f.MinSamplesLeaf)
	}

	return nil
}
