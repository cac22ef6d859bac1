package util

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ReadConfig loads ./.env (if present) into the process environment and then ./data/config.*.
// every key has a default so a missing config file is not fatal.
func ReadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	setDefaults()
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("TIMETABLE_FILE", "./data/timetable.txt.bz2")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("SEARCH_RADIUS_KM", 0.5)
	viper.SetDefault("LEAF_BOUNDING_BOX_RADIUS_KM", 0.01)
	viper.SetDefault("RESOLVER_CACHE_SIZE", 1<<14)
	viper.SetDefault("REALTIME_TRIP_UPDATES_URL", "")
	viper.SetDefault("REALTIME_POLL_INTERVAL", "30s")
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("LOG_LEVEL", "info")
}
