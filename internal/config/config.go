package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	AuthRequired       bool
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
	SQLitePath string
	LogSQL     bool
}

type AIConfig struct {
	LLMProvider        string // "ollama", "openai", "huggingface"
	LLMModel           string
	OllamaBaseURL      string
	LLMBaseURL         string // chat-completions compatible endpoint
	LLMApiKey          string
	ExtractionAttempts int
}

type EngineConfig struct {
	ActionCap                int
	AutoCheckpointKeep       int
	TurnStaleAfter           time.Duration
	MaxChainedSimulatedTurns int
	ProgressionInterval      time.Duration
	ProgressionTension       float64
	SessionIdleTTL           time.Duration
	StartLocationName        string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/engine.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			AuthRequired:       getEnvAsBool("AUTH_REQUIRED", false),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			SQLitePath: getEnv("SQLITE_PATH", "narrative.db"),
			LogSQL:     getEnvAsBool("DB_LOG_SQL", false),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
			LLMApiKey:          getEnv("LLM_API_KEY", ""),
			ExtractionAttempts: getEnvAsInt("EXTRACTION_ATTEMPTS", 3),
		},
		Engine: EngineConfig{
			ActionCap:                getEnvAsInt("ACTION_CAP", 3),
			AutoCheckpointKeep:       getEnvAsInt("AUTO_CHECKPOINT_KEEP", 10),
			TurnStaleAfter:           getEnvAsDuration("TURN_STALE_AFTER", 5*time.Minute),
			MaxChainedSimulatedTurns: getEnvAsInt("MAX_CHAINED_SIMULATED_TURNS", 5),
			ProgressionInterval:      getEnvAsDuration("PROGRESSION_INTERVAL", 30*time.Second),
			ProgressionTension:       getEnvAsFloat("PROGRESSION_TENSION", 0.6),
			SessionIdleTTL:           getEnvAsDuration("SESSION_IDLE_TTL", 2*time.Hour),
			StartLocationName:        getEnv("START_LOCATION_NAME", "Crossroads"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
