package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации blockclip.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// EngineConfig параметры ядра обрезки
type EngineConfig struct {
	MaxDepth        int     `yaml:"max_depth"`
	Epsilon         float64 `yaml:"epsilon"`
	Tolerance       float64 `yaml:"tolerance"`
	DefaultColor    int     `yaml:"default_color"`
	DefaultLinetype string  `yaml:"default_linetype"`
	ClipDictionary  string  `yaml:"clip_dictionary"`
	ClipEntry       string  `yaml:"clip_entry"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxDepth:        64,
			Epsilon:         1e-6,
			Tolerance:       0.001,
			DefaultColor:    7,
			DefaultLinetype: "Continuous",
			ClipDictionary:  "ACAD_FILTER",
			ClipEntry:       "SPATIAL",
		},
		Storage: StorageConfig{
			DataDir: "./data/drawings",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "blockclip",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetMaxDepth возвращает предел вложенности: config -> env -> default
func (e *EngineConfig) GetMaxDepth() int {
	return getIntWithEnvFallback(e.MaxDepth, "BLOCKCLIP_MAX_DEPTH", 64)
}

// GetDataDir возвращает каталог badger: config -> env -> default
func (s *StorageConfig) GetDataDir() string {
	return getStringWithEnvFallback(s.DataDir, "BLOCKCLIP_DATA_DIR", "./data/drawings")
}

// GetAddr возвращает адрес /metrics; пустая строка отключает эндпоинт
func (m *MetricsConfig) GetAddr() string {
	return getStringWithEnvFallback(m.Addr, "BLOCKCLIP_METRICS_ADDR", "")
}

// GetEndpoint возвращает OTLP эндпоинт; пустая строка отключает экспорт
func (t *TelemetryConfig) GetEndpoint() string {
	return getStringWithEnvFallback(t.Endpoint, "BLOCKCLIP_OTLP_ENDPOINT", "")
}

// GetLevel возвращает уровень логирования
func (l *LogConfig) GetLevel() string {
	return getStringWithEnvFallback(l.Level, "BLOCKCLIP_LOG_LEVEL", "info")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берется ENV BLOCKCLIP_CONFIG; если и он пуст,
// возвращается конфигурация по умолчанию без ошибок.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("BLOCKCLIP_CONFIG")
	}

	cfg := Default()
	// Поля, для которых действует env fallback, обнуляем: иначе
	// значение по умолчанию перекроет переменную окружения.
	cfg.Engine.MaxDepth = 0
	cfg.Storage.DataDir = ""
	cfg.Log.Level = ""

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
		}
	}

	cfg.Engine.MaxDepth = cfg.Engine.GetMaxDepth()
	cfg.Storage.DataDir = cfg.Storage.GetDataDir()
	cfg.Metrics.Addr = cfg.Metrics.GetAddr()
	cfg.Telemetry.Endpoint = cfg.Telemetry.GetEndpoint()
	cfg.Log.Level = cfg.Log.GetLevel()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Engine.MaxDepth <= 0 {
		return fmt.Errorf("engine.max_depth должен быть положительным: %d", c.Engine.MaxDepth)
	}
	if c.Engine.Epsilon <= 0 {
		return fmt.Errorf("engine.epsilon должен быть положительным: %g", c.Engine.Epsilon)
	}
	if c.Engine.Tolerance <= 0 {
		return fmt.Errorf("engine.tolerance должен быть положительным: %g", c.Engine.Tolerance)
	}
	if c.Engine.DefaultColor < 1 || c.Engine.DefaultColor > 255 {
		return fmt.Errorf("engine.default_color вне диапазона 1..255: %d", c.Engine.DefaultColor)
	}
	if c.Engine.ClipDictionary == "" || c.Engine.ClipEntry == "" {
		return fmt.Errorf("engine.clip_dictionary и engine.clip_entry обязательны")
	}
	return nil
}
