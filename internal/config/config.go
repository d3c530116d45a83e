package config

import (
	"os"
	"strconv"
	"strings"

	"goveg/domain/resilience"
	"goveg/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Metrics  MetricsConfig
	Survey   SurveyConfig
	Analysis AnalysisConfig
	Server   ServerConfig
	Paths    PathConfig
	Debug    bool
}

// DatabaseConfig holds ledger connection settings. An empty URL selects
// the in-memory ledger.
type DatabaseConfig struct {
	URL string
}

// MetricsConfig holds the tiling and scoring settings
type MetricsConfig struct {
	TileRows        int
	TileCols        int
	Threshold       float64
	ComputeOffset50 bool
	TileWorkers     int
}

// SurveyConfig holds the archive walk settings
type SurveyConfig struct {
	DateWorkers      int
	StoreTileRecords bool
}

// AnalysisConfig holds the series pipeline settings
type AnalysisConfig struct {
	OutlierSigmas        float64
	OutlierWindow        int
	ResampleDays         int
	SmoothingFraction    float64
	IndicatorWindow      int
	IndicatorSource      string
	SignificanceLevel    float64
	SurrogateCount       int
	SensitivityWindows   []int
	SensitivityFractions []float64
	Seed                 int64
}

// Params converts the settings into pipeline parameters
func (a AnalysisConfig) Params() resilience.AnalysisParams {
	return resilience.AnalysisParams{
		OutlierSigmas:        a.OutlierSigmas,
		OutlierWindow:        a.OutlierWindow,
		ResampleDays:         a.ResampleDays,
		SmoothingFraction:    a.SmoothingFraction,
		IndicatorWindow:      a.IndicatorWindow,
		IndicatorSource:      resilience.IndicatorSource(a.IndicatorSource),
		SignificanceLevel:    a.SignificanceLevel,
		SurrogateCount:       a.SurrogateCount,
		SensitivityWindows:   a.SensitivityWindows,
		SensitivityFractions: a.SensitivityFractions,
		Seed:                 a.Seed,
	}
}

// ServerConfig holds the results API settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	ArchivePath string
	ClimateFile string
	OutputDir   string
	Site        string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: getEnvOrDefault("LEDGER_DSN", ""),
		},
		Metrics: MetricsConfig{
			TileRows:        getEnvIntOrDefault("TILE_ROWS", 50),
			TileCols:        getEnvIntOrDefault("TILE_COLS", 50),
			Threshold:       getEnvFloatOrDefault("VEG_THRESHOLD", 0.3),
			ComputeOffset50: getEnvBoolOrDefault("COMPUTE_OFFSET50", false),
			TileWorkers:     getEnvIntOrDefault("TILE_WORKERS", 0),
		},
		Survey: SurveyConfig{
			DateWorkers:      getEnvIntOrDefault("DATE_WORKERS", 4),
			StoreTileRecords: getEnvBoolOrDefault("STORE_TILE_RECORDS", false),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths: PathConfig{
			ArchivePath: getEnvOrDefault("ARCHIVE_PATH", ""),
			ClimateFile: getEnvOrDefault("CLIMATE_FILE", ""),
			OutputDir:   getEnvOrDefault("OUTPUT_DIR", "output"),
			Site:        getEnvOrDefault("SITE_ID", ""),
		},
		Debug: getEnvBoolOrDefault("DEBUG", false),
	}

	analysisConfig, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysisConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	windows, err := getEnvIntListOrDefault("SENSITIVITY_WINDOWS", []int{10, 15, 20})
	if err != nil {
		return nil, err
	}
	fractions, err := getEnvFloatListOrDefault("SENSITIVITY_FRACTIONS", []float64{0.15, 0.2, 0.3})
	if err != nil {
		return nil, err
	}

	return &AnalysisConfig{
		OutlierSigmas:        getEnvFloatOrDefault("OUTLIER_SIGMAS", 3.0),
		OutlierWindow:        getEnvIntOrDefault("OUTLIER_WINDOW", 0),
		ResampleDays:         getEnvIntOrDefault("RESAMPLE_DAYS", 30),
		SmoothingFraction:    getEnvFloatOrDefault("SMOOTHING_FRACTION", 0.2),
		IndicatorWindow:      getEnvIntOrDefault("INDICATOR_WINDOW", 15),
		IndicatorSource:      getEnvOrDefault("INDICATOR_SOURCE", "residual"),
		SignificanceLevel:    getEnvFloatOrDefault("SIGNIFICANCE_LEVEL", 0.05),
		SurrogateCount:       getEnvIntOrDefault("SURROGATE_COUNT", 200),
		SensitivityWindows:   windows,
		SensitivityFractions: fractions,
		Seed:                 getEnvInt64OrDefault("ANALYSIS_SEED", 42),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Metrics.TileRows <= 0 || config.Metrics.TileCols <= 0 {
		return errors.ConfigInvalid("tile rows and cols must be positive")
	}
	if config.Survey.DateWorkers <= 0 {
		return errors.ConfigInvalid("date workers must be positive")
	}
	if err := config.Analysis.Params().Validate(); err != nil {
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvIntListOrDefault(key string, defaultValue []int) ([]int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.ConfigInvalid(key + " must be a comma-separated list of integers")
		}
		out = append(out, n)
	}
	return out, nil
}

func getEnvFloatListOrDefault(key string, defaultValue []float64) ([]float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.ConfigInvalid(key + " must be a comma-separated list of numbers")
		}
		out = append(out, f)
	}
	return out, nil
}
