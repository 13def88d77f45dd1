package config

import (
	"flag"
	"github.com/ilyakaznacheev/cleanenv"
	"os"
	"time"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// TokenType discriminates the token variants minted by the factory
type TokenType string

const (
	ACCESS  TokenType = "access"
	REFRESH TokenType = "refresh"
	ID      TokenType = "id"
)

type Config struct {
	Env                     string        `yaml:"env" env-default:"local"`
	Issuer                  string        `yaml:"issuer" env-required:"true"`
	TokenTTL                time.Duration `yaml:"token_ttl" env-default:"15m"`
	RefreshTokenTTL         time.Duration `yaml:"refresh_token_ttl" env-default:"720h"`
	IDTokenTTL              time.Duration `yaml:"id_token_ttl" env-default:"15m"`
	AuthorizationCodeTTL    time.Duration `yaml:"authorization_code_ttl" env-default:"5m"`
	AuthorizationRequestTTL time.Duration `yaml:"authorization_request_ttl" env-default:"10m"`
	DenylistSweepInterval   time.Duration `yaml:"denylist_sweep_interval" env-default:"5m"`
	HTTP                    HTTPConfig    `yaml:"http" env-required:"true"`
	Storage                 StorageConfig `yaml:"storage" env-required:"true"`
	Redis                   RedisConfig   `yaml:"redis"`
	Signer                  SignerConfig  `yaml:"signer" env-required:"true"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

// StorageConfig selects the persistence backend.
// Driver "postgres" requires ConnString; "memory" keeps everything in-process
// and is intended for development and tests.
type StorageConfig struct {
	Driver     string `yaml:"driver" env-default:"postgres"`
	ConnString string `yaml:"conn_string"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" env-default:"localhost"`
	Port     int           `yaml:"port" env-default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	KeysTTL  time.Duration `yaml:"keys_ttl" env-default:"10m"`
}

// SignerConfig selects the signing backend.
// Mode "local" signs with an RSA key read from KeyPath (generated when the file
// is absent); "vault" delegates signing to the Vault transit engine.
type SignerConfig struct {
	Mode         string `yaml:"mode" env-default:"local"`
	KeyPath      string `yaml:"key_path"`
	VaultAddress string `yaml:"vault_address" env:"VAULT_ADDR"`
	VaultToken   string `yaml:"vault_token" env:"VAULT_TOKEN"`
	VaultKeyName string `yaml:"vault_key_name" env-default:"jwt_keys"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config path does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// Priority: flag > env > default
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
