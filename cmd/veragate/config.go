// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/veragate/pkg/types"
)

// loadConfig reads the configuration tree from viper. Keys mirror the yaml
// tags of types.AppConfig; environment overrides use the VERAGATE_ prefix
// with dots replaced by underscores (VERAGATE_SERVER_ADDR).
func loadConfig() types.AppConfig {
	var c types.AppConfig

	p := &c.Pipeline
	p.Provider.APIKey = viper.GetString("pipeline.provider.api_key")
	p.Provider.BaseURL = viper.GetString("pipeline.provider.base_url")
	p.Provider.Timeout = viper.GetDuration("pipeline.provider.timeout")
	p.Provider.UserAgent = viper.GetString("pipeline.provider.user_agent")
	p.Provider.RateLimitRetries = viper.GetInt("pipeline.provider.rate_limit_retries")

	p.Poll.Interval = viper.GetDuration("pipeline.poll.interval")
	p.Poll.MaxInterval = viper.GetDuration("pipeline.poll.max_interval")
	p.Poll.Multiplier = viper.GetFloat64("pipeline.poll.multiplier")
	p.Poll.MaxWait = viper.GetDuration("pipeline.poll.max_wait")

	p.Watcher = stageConfig("pipeline.watcher")
	p.Auditor = stageConfig("pipeline.auditor")

	p.RateLimit.RequestsPerMinute = viper.GetInt("pipeline.rate_limit.requests_per_minute")
	p.RateLimit.Burst = viper.GetInt("pipeline.rate_limit.burst")
	p.RunTimeout = viper.GetDuration("pipeline.run_timeout")

	c.Server.Addr = viper.GetString("server.addr")
	c.Server.MaxUploadBytes = viper.GetInt64("server.max_upload_bytes")
	c.Server.ReadHeaderTimeout = viper.GetDuration("server.read_header_timeout")

	c.Store.Path = viper.GetString("store.path")

	c.Archive.Endpoint = viper.GetString("archive.endpoint")
	c.Archive.AccessKey = viper.GetString("archive.access_key")
	c.Archive.SecretKey = viper.GetString("archive.secret_key")
	c.Archive.Bucket = viper.GetString("archive.bucket")
	c.Archive.UseSSL = viper.GetBool("archive.use_ssl")

	c.Logging.Level = viper.GetString("logging.level")
	c.Logging.File = viper.GetString("logging.file")

	c.Pipeline = c.Pipeline.WithDefaults()
	c.Server = c.Server.WithDefaults()
	return c
}

func stageConfig(prefix string) types.StageConfig {
	return types.StageConfig{
		Model:        viper.GetString(prefix + ".model"),
		MaxRetries:   viper.GetInt(prefix + ".max_retries"),
		RetryBackoff: viper.GetDuration(prefix + ".retry_backoff"),
	}
}
