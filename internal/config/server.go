package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	// Optional DifficultyState hot cache. Empty disables caching and reads
	// go straight to postgres.
	RedisURL string `env:"REDIS_URL"`

	// Optional security-event publisher. Empty falls back to the
	// log-and-table sink.
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaSecurityTopic string   `env:"KAFKA_SECURITY_TOPIC" envDefault:"security.session_flags"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
