package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultSecretKey = "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"

var ErrMissingConfig = errors.New("missing configuration")

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridAPIKey   string

		Server    ServerConfig
		Database  DatabaseConfig
		Classroom ClassroomConfig
		EventAPI  EventAPIConfig
		Grading   GradingConfig
	}

	ServerConfig struct {
		Host               string
		Port               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		SessionIdleTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		// Disabled keeps attendance drafts in memory only.
		Disabled bool
	}

	ClassroomConfig struct {
		CourseWorkPageSize int64
		FetchConcurrency   int
		Timeout            time.Duration
	}

	EventAPIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	GradingConfig struct {
		PassMark       int
		HistogramWidth int
	}
)

func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate reports configuration errors that must stop the application from starting.
func (c *Config) Validate() error {
	if c.Debug || c.TestMode {
		return nil
	}
	if c.SecretKey == "" || c.SecretKey == defaultSecretKey {
		return errors.Wrap(ErrMissingConfig, "SECRET_KEY")
	}
	if c.EventAPI.BaseURL == "" {
		return errors.Wrap(ErrMissingConfig, "EVENT_API_BASE_URL")
	}
	if c.SendgridAPIKey == "" {
		return errors.Wrap(ErrMissingConfig, "SENDGRID_API_KEY")
	}
	return nil
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("appName", "Classboard")
	conf.SetDefault("secretKey", defaultSecretKey)
	conf.SetDefault("frontendBaseURL", "http://localhost:5173")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridAPIKey", "")

	conf.SetDefault("serverHost", "")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("serverDebugHost", "localhost:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 8*time.Hour)
	conf.SetDefault("sessionIdleTimeout", 8*time.Hour)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseName", "classboard")
	conf.SetDefault("databaseUser", "classboard")
	conf.SetDefault("databasePassword", "classboard")
	conf.SetDefault("databaseAdminUser", "postgres")
	conf.SetDefault("databaseAdminPassword", "")
	conf.SetDefault("databaseDisableTLS", true)
	conf.SetDefault("databaseDisabled", false)

	conf.SetDefault("classroomCourseWorkPageSize", int64(20))
	conf.SetDefault("classroomFetchConcurrency", 4)
	conf.SetDefault("classroomTimeout", 30*time.Second)

	conf.SetDefault("eventAPIBaseURL", "http://localhost:3000")
	conf.SetDefault("eventAPITimeout", 15*time.Second)

	conf.SetDefault("gradingPassMark", 70)
	conf.SetDefault("gradingHistogramWidth", 5)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		from = &mail.Address{Address: conf.GetString("defaultFromEmail")}
	}
	from.Name = conf.GetString("appName")

	return &Config{
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: *from,
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridAPIKey:   conf.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			Port:               conf.GetString("serverPort"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
			SessionIdleTimeout: conf.GetDuration("sessionIdleTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			Name:          conf.GetString("databaseName"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
			Disabled:      conf.GetBool("databaseDisabled"),
		},
		Classroom: ClassroomConfig{
			CourseWorkPageSize: conf.GetInt64("classroomCourseWorkPageSize"),
			FetchConcurrency:   conf.GetInt("classroomFetchConcurrency"),
			Timeout:            conf.GetDuration("classroomTimeout"),
		},
		EventAPI: EventAPIConfig{
			BaseURL: conf.GetString("eventAPIBaseURL"),
			Timeout: conf.GetDuration("eventAPITimeout"),
		},
		Grading: GradingConfig{
			PassMark:       conf.GetInt("gradingPassMark"),
			HistogramWidth: conf.GetInt("gradingHistogramWidth"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests; it never reads the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		AppName:          "Classboard",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Name: "Classboard", Address: "noreply@localhost"},
		Server: ServerConfig{
			JWTExpirationDelta: time.Hour,
			SessionIdleTimeout: time.Hour,
			ShutdownTimeout:    time.Second,
		},
		Database:  DatabaseConfig{Disabled: true},
		Classroom: ClassroomConfig{CourseWorkPageSize: 20, FetchConcurrency: 2, Timeout: 5 * time.Second},
		EventAPI:  EventAPIConfig{BaseURL: "http://localhost:3000", Timeout: 5 * time.Second},
		Grading:   GradingConfig{PassMark: 70, HistogramWidth: 5},
	}
}
