package config

import (
	"embed"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configYAML embed.FS

// Config is the application configuration. The embedded defaults ship
// with the binary; environment references (${VAR}) are expanded at
// load time.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Rating   RatingConfig   `yaml:"rating"`
	Keywords KeywordConfig  `yaml:"keywords"`
	HubSpot  HubSpotConfig  `yaml:"hubspot"`
}

type FeedConfig struct {
	BaseURL string `yaml:"base_url"`
}

type ScheduleConfig struct {
	Timezone string `yaml:"timezone"`
	Ingest   string `yaml:"ingest"`
	Rating   string `yaml:"rating"`
}

type RatingConfig struct {
	BatchSize               int    `yaml:"batch_size"`
	DelayBetweenContractsMs int    `yaml:"delay_between_contracts_ms"`
	DelayBetweenBatchesMs   int    `yaml:"delay_between_batches_ms"`
	AnthropicModel          string `yaml:"anthropic_model"`
}

type KeywordConfig struct {
	Default       []string `yaml:"default"`
	InitialImport []string `yaml:"initial_import"`
}

type HubSpotConfig struct {
	Pipeline  string `yaml:"pipeline"`
	DealStage string `yaml:"deal_stage"`
	PortalID  string `yaml:"portal_id"`
}

// Load reads the embedded config.yaml. A path can be given to load an
// overriding file during local development; empty path uses the
// embedded copy.
func Load(path string) (*Config, error) {
	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		data, err = configYAML.ReadFile("config.yaml")
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DelayBetweenContracts returns the inter-contract pause as a Duration.
func (r RatingConfig) DelayBetweenContracts() time.Duration {
	return time.Duration(r.DelayBetweenContractsMs) * time.Millisecond
}

// DelayBetweenBatches returns the inter-batch pause as a Duration.
func (r RatingConfig) DelayBetweenBatches() time.Duration {
	return time.Duration(r.DelayBetweenBatchesMs) * time.Millisecond
}
