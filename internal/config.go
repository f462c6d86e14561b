package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrPanicEnvNotSet = errors.New("environment variable not set")
	ErrPanicEnvNotInt = errors.New("environment variable is not an integer")

	ErrNoOutputBucket = errors.New("output bucket not configured")
	ErrNoDefinitions  = errors.New("transcode definitions not configured")
)

const (
	EnvServerPort           = "VT_SERVER_PORT"
	EnvSecretID             = "VT_SECRET_ID"
	EnvSecretKey            = "VT_SECRET_KEY"
	EnvOutputBucket         = "VT_OUTPUT_BUCKET"
	EnvOutputDir            = "VT_OUTPUT_DIR"
	EnvTranscodeDefinitions = "VT_TRANSCODE_DEFINITIONS"
	EnvProxy                = "VT_PROXY"
	EnvAPIEndpoint          = "VT_API_ENDPOINT"
	EnvLogLevel             = "VT_LOG_LEVEL"
	EnvCOSEndpoint          = "VT_COS_ENDPOINT"
)

const (
	DefaultAPIEndpoint          = "https://vod.api.qcloud.com/v2/index.php"
	DefaultTranscodeDefinitions = "20"
	DefaultLogLevel             = "info"
)

// Config is loaded once at startup and must not be modified afterwards.
type Config struct {
	Server      *ServerConfig
	Credentials *CredentialsConfig
	Output      *OutputConfig
	// Definitions lists transcode profile ids. Only the first is sent.
	Definitions []int
	// Proxy is an optional outbound HTTP proxy URL.
	Proxy       string
	APIEndpoint string
	LogLevel    string
	// COSEndpoint enables the startup output-bucket check when set.
	COSEndpoint string
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Port int
}

type CredentialsConfig struct {
	SecretID  string
	SecretKey string
}

type OutputConfig struct {
	Bucket string
	Dir    string
}

func mustGetenv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotSet, key))
	}
	return value
}

func mustGetenvAtoi(key string) int {
	valueStr := mustGetenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotInt, key))
	}
	return value
}

func getenvDefault(key, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return def
}

// ParseDefinitions parses a comma separated list of transcode definition ids.
func ParseDefinitions(s string) ([]int, error) {
	var defs []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		def, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid transcode definition %q: %w", part, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func NewConfigFromEnv() *Config {
	// A bad definition list is not fatal; CheckTranscode reports it.
	defs, _ := ParseDefinitions(getenvDefault(EnvTranscodeDefinitions, DefaultTranscodeDefinitions))

	return &Config{
		Server: &ServerConfig{
			Port: mustGetenvAtoi(EnvServerPort),
		},
		Credentials: &CredentialsConfig{
			SecretID:  getenvDefault(EnvSecretID, ""),
			SecretKey: getenvDefault(EnvSecretKey, ""),
		},
		Output: &OutputConfig{
			Bucket: getenvDefault(EnvOutputBucket, ""),
			Dir:    getenvDefault(EnvOutputDir, ""),
		},
		Definitions: defs,
		Proxy:       getenvDefault(EnvProxy, ""),
		APIEndpoint: getenvDefault(EnvAPIEndpoint, DefaultAPIEndpoint),
		LogLevel:    getenvDefault(EnvLogLevel, DefaultLogLevel),
		COSEndpoint: getenvDefault(EnvCOSEndpoint, ""),
	}
}

// CheckTranscode is the precondition gate run before building request
// parameters for a record.
func (c *Config) CheckTranscode() error {
	var errs []error
	if len(c.Definitions) == 0 {
		errs = append(errs, ErrNoDefinitions)
	}
	if c.Output == nil || c.Output.Bucket == "" {
		errs = append(errs, ErrNoOutputBucket)
	}
	return errors.Join(errs...)
}

func (c *Config) outputBucket() string {
	if c.Output == nil {
		return ""
	}
	return c.Output.Bucket
}
