package app_config

import (
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"
)

// This is the agent config for a single node deployment.
type AgentAppConfig struct {
	// Address the control surface listens on, e.g. ":8080".
	SERVER_ADDRESS string `yaml:"SERVER_ADDRESS"`

	// Auto-run interval at startup. Must be one of the allowed intervals.
	AUTO_RUN_INTERVAL_SECOND int `yaml:"AUTO_RUN_INTERVAL_SECOND"`
	// Whether the auto-run timer counts down at startup.
	AUTO_RUN_ENABLED bool `yaml:"AUTO_RUN_ENABLED"`

	// Per-call budget of each enrichment tool.
	TOOL_BUDGET_SECOND int64 `yaml:"TOOL_BUDGET_SECOND"`

	// RSS feeds polled on each run trigger.
	RSS_FEED_URLS []string `yaml:"RSS_FEED_URLS"`
	// Candidates older than this are dropped at ingestion.
	RSS_MAX_AGE_HOUR int `yaml:"RSS_MAX_AGE_HOUR"`

	// Process queue items newest first.
	NEWEST_FIRST bool `yaml:"NEWEST_FIRST"`

	// Use the redis backed admission table instead of the in-process map, so
	// dedup survives restarts.
	USE_REDIS_ADMISSION bool `yaml:"USE_REDIS_ADMISSION"`
	// Persist run history and generated posts in postgres.
	USE_POSTGRES_STORAGE bool `yaml:"USE_POSTGRES_STORAGE"`
	// Also push generated posts to the SNS sink.
	PUSH_TO_SNS bool `yaml:"PUSH_TO_SNS"`
}

func ParseAgentAppConfig(path string) AgentAppConfig {
	c := AgentAppConfig{}
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("yamlFile. get err: ", err.Error())
	}
	err = yaml.Unmarshal(yamlFile, &c)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	return c
}
