package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env-default:"9090"`
	SocketPort        string `yaml:"socket-port" env-default:"8080"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env-default:"chronicles.db"`
	JWTSecretKey      string `yaml:"jwt-secret-key"`
	Game              Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	JoinTimeoutSeconds     int         `yaml:"join-timeout-seconds" env-default:"60"`
	MatchingTimeoutSeconds int         `yaml:"matching-timeout-seconds" env-default:"60"`
	MatchingScoreWindow    int         `yaml:"matching-score-window" env-default:"5"`
	RankedBoard            RankedBoard `yaml:"ranked-board"`
}

// RankedBoard is the battle setup used for matchmade sessions, where no
// initiator picks one.
type RankedBoard struct {
	Height int    `yaml:"height" env-default:"8"`
	Width  int    `yaml:"width" env-default:"8"`
	Battle string `yaml:"battle" env-default:"ranked"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Game) JoinTimeout() time.Duration {
	return time.Duration(that.JoinTimeoutSeconds) * time.Second
}

func (that *Game) MatchingTimeout() time.Duration {
	return time.Duration(that.MatchingTimeoutSeconds) * time.Second
}
