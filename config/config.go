package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/biblioteca-utp/portal-service/pkg/auth"
	"github.com/biblioteca-utp/portal-service/pkg/kafka"
	"github.com/biblioteca-utp/portal-service/pkg/logger"
	"github.com/biblioteca-utp/portal-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"PORTAL_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"PORTAL_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration
}

type Storage struct {
	// PublicBaseURL prefixes storage-relative cover/PDF paths.
	PublicBaseURL string `yaml:"publicBaseUrl" envconfig:"STORAGE_PUBLIC_BASE_URL"`
}

type Config struct {
	Server   HTTPServer   `yaml:"server"`
	Database postgres.DB  `yaml:"db"`
	Kafka    kafka.Config `yaml:"kafka"`
	Auth     auth.Config  `yaml:"auth"`
	Storage  Storage      `yaml:"storage"`
	Log      logger.Log   `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
