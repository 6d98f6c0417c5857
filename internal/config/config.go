package config

import (
	"os"
	"strconv"
)

type Config struct {
	Env                 string
	Port                int
	DatabaseURL         string
	JWTSecret           string
	LogJSON             bool
	PublicBaseURL       string
	StorefrontURL       string
	TamaraAPIURL        string
	TamaraAPIKey        string
	TamaraWebhookSecret string
}

func Default() Config {
	return Config{
		Env:           "dev",
		Port:          5000,
		LogJSON:       true,
		PublicBaseURL: "http://127.0.0.1:5000",
		StorefrontURL: "http://127.0.0.1:3000",
		TamaraAPIURL:  "https://api.tamara.co",
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("COMMERCE_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("COMMERCE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("COMMERCE_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("COMMERCE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("COMMERCE_LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	if v := os.Getenv("COMMERCE_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv("COMMERCE_STOREFRONT_URL"); v != "" {
		c.StorefrontURL = v
	}
	if v := os.Getenv("TAMARA_API_URL"); v != "" {
		c.TamaraAPIURL = v
	}
	if v := os.Getenv("TAMARA_API_KEY"); v != "" {
		c.TamaraAPIKey = v
	}
	if v := os.Getenv("TAMARA_WEBHOOK_SECRET"); v != "" {
		c.TamaraWebhookSecret = v
	}
	return c
}
