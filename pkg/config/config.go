// Package config loads and validates the orchestrator's JSON configuration
// file, searching the fixed set of well-known paths the spec defines.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SearchPaths are the locations the config file is looked up in, in order.
var SearchPaths = []string{
	"./config.json",
	"./appconfig.json",
	"/etc/myloadbalancer/config.json",
}

// ServerConfig describes the admin/proxy HTTP listener.
type ServerConfig struct {
	Port int
	Host string
}

// DockerConfig describes how the container runtime CLI is invoked.
type DockerConfig struct {
	ExecutablePath string
	Environment    map[string]string
}

// DeploymentConfig is the on-disk representation of a DeploymentSpec, prior
// to default resolution.
type DeploymentConfig struct {
	Name                string
	Image               string
	Dockerfile          string
	Context             string
	Replicas            int
	ContainerPort       int
	HealthCheckPath     string
	HealthCheckInterval float64
	RemoteURL           string
}

// Config is the fully parsed configuration file.
type Config struct {
	Server     ServerConfig
	Docker     DockerConfig
	Deployment DeploymentConfig
}

// Load searches SearchPaths in order for a config file, parses the first
// one found, and applies the documented defaults. It returns a
// Config/NotFound-shaped error listing the searched paths when none exists,
// or a Config/Invalid-shaped error naming the file and cause on a parse or
// validation failure.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("deployment.replicas", 1)
	v.SetDefault("deployment.containerPort", 8080)
	v.SetDefault("deployment.healthCheckPath", "/health")
	v.SetDefault("deployment.healthCheckInterval", 10)
	v.SetDefault("docker.executablePath", "docker")

	var foundPath string
	for _, path := range SearchPaths {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err == nil {
			foundPath = path
			break
		}
	}
	if foundPath == "" {
		return nil, fmt.Errorf("config: no configuration file found, searched: %v", SearchPaths)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("server.port"),
			Host: v.GetString("server.host"),
		},
		Docker: DockerConfig{
			ExecutablePath: v.GetString("docker.executablePath"),
			Environment:    v.GetStringMapString("docker.environment"),
		},
		Deployment: DeploymentConfig{
			Name:                v.GetString("deployment.name"),
			Image:               v.GetString("deployment.image"),
			Dockerfile:          v.GetString("deployment.dockerfile"),
			Context:             v.GetString("deployment.context"),
			Replicas:            v.GetInt("deployment.replicas"),
			ContainerPort:       v.GetInt("deployment.containerPort"),
			HealthCheckPath:     v.GetString("deployment.healthCheckPath"),
			HealthCheckInterval: v.GetFloat64("deployment.healthCheckInterval"),
			RemoteURL:           v.GetString("deployment.remoteUrl"),
		},
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("config: invalid configuration in %s: %s", foundPath, errs.Error())
	}

	return cfg, nil
}

// HealthCheckIntervalDuration converts the configured interval (seconds) to
// a time.Duration.
func (c *DeploymentConfig) HealthCheckIntervalDuration() time.Duration {
	return time.Duration(c.HealthCheckInterval * float64(time.Second))
}
