package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ExamConfig struct {
		// AutosaveDelay is the debounce window between the last edit and the batch save.
		AutosaveDelay time.Duration
		// SessionIdleTimeout evicts dashboard sessions nobody touched for that long.
		SessionIdleTimeout time.Duration
		FetchTimeout       time.Duration
		SaveTimeout        time.Duration
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Exam         ExamConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig reads the configuration from the environment.
// ENV selects the environment (DEV by default, TEST, QA, PROD) and is also the prefix of every variable,
// eg. DEV_DATABASE_HOST. A `config/.env.<env>` file is loaded first when present.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Tasmik")
	v.SetDefault("secretKey", "x9!vq-2k$rm@u7e=lz&0pd#ha^3cw+tn8(fj)b5y")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tasmik")
	v.SetDefault("database.user", "tasmik")
	v.SetDefault("database.password", "tasmik")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("exam.autosaveDelay", 1200*time.Millisecond)
	v.SetDefault("exam.sessionIdleTimeout", 30*time.Minute)
	v.SetDefault("exam.fetchTimeout", 10*time.Second)
	v.SetDefault("exam.saveTimeout", 15*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Exam: ExamConfig{
			AutosaveDelay:      v.GetDuration("exam.autosaveDelay"),
			SessionIdleTimeout: v.GetDuration("exam.sessionIdleTimeout"),
			FetchTimeout:       v.GetDuration("exam.fetchTimeout"),
			SaveTimeout:        v.GetDuration("exam.saveTimeout"),
		},
	}
}
