package config

import (
	"errors"
	"log/slog"

	"github.com/spf13/viper"
)

type Config struct {
	ServerName string
	Storage    Storage
	Chat       Chat
	LoggerMode LoggerMode
	// Capabilities maps user UUIDs to granted capability strings when no
	// external permission system is wired in.
	Capabilities map[string][]string
}

type Storage struct {
	// Type selects the durable backend: "postgres" or "file". Anything
	// else is treated as "file".
	Type string
	// DSN for the relational backend.
	DSN string
	// DataDir holds the YAML documents and user profiles in file mode.
	DataDir string
}

type Chat struct {
	// MaxChannelsPerUser caps custom channel creation; -1 means unlimited.
	MaxChannelsPerUser int
	// DefaultMaxMembers is applied to newly created channels.
	DefaultMaxMembers int
}

type LoggerMode struct {
	Development bool
	Prod        bool
	Level       string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")

	v.SetDefault("servername", "Unknown")
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.datadir", "data")
	v.SetDefault("chat.maxchannelsperuser", 3)
	v.SetDefault("chat.defaultmaxmembers", 100)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	err := v.Unmarshal(&c)
	if err != nil {
		slog.Error("Unable to unmarshal config", "err", err)
		return nil, err
	}
	return &c, nil
}
