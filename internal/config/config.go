// Package config provides viper-backed settings for provider order,
// upstream endpoints, credentials and cache tuning.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "anipipe"

// EnvKeyReplacer normalizes configuration keys into environment variable
// naming conventions (providers.order.sub -> ANIPIPE_PROVIDERS_ORDER_SUB).
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// defaults holds factory values for every defined key.
var defaults = map[string]any{
	KeyOrderSub: []string{"hianime", "anicrush", "animepahe", "aniwave"},
	KeyOrderDub: []string{"anicrush", "hianime", "aniwave", "animepahe"},

	KeyHiAnimeBase:   "https://hianime.to",
	KeyAnimePaheBase: "https://animepahe.ru",
	KeyAniCrushBase:  "https://api.anicrush.cc",
	KeyAniCrushKeys:  []string{},
	KeyAniWaveBase:   "https://aniwave.at",
	KeyVidCDNEndpoints: []string{
		"https://vidcdn.moe",
		"https://edge1.vidcdn.moe",
		"https://edge2.vidcdn.moe",
	},
	KeyResolverBase:  "https://api.malsync.moe",
	KeySkipTimesBase: "https://api.aniskip.com",
	KeyMetadataBase:  "https://graphql.anilist.co",

	KeyCacheEpisodeTTL: 30 * time.Minute,
	KeyCacheDetailTTL:  30 * time.Minute,
	KeyCacheTokenBuf:   60 * time.Second,

	KeySyntheticTimings: false,
	KeyUserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// Setup initializes viper with defaults, env bindings and an optional
// config file. A missing config file is not an error.
func Setup() error {
	viper.SetConfigName(envPrefix)
	viper.SetConfigType("toml")
	viper.AddConfigPath("$HOME/.config/anipipe")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	viper.AutomaticEnv()

	viper.SetTypeByDefaultValue(true)
	for name, value := range defaults {
		viper.SetDefault(name, value)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}
