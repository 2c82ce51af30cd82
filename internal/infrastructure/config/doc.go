// Package config handles loading and validating the hashpipe gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HPGW_*)
//   - Reading standalone Prometheus exporter files
//   - Validation of required fields
//
// Command line flags are applied by the caller between Load and Validate.
//
// Usage:
//
//	cfg, err := config.Load("configs/hpgateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.RedisAddr())
//
// Secrets (Redis, MQTT and InfluxDB credentials) should be supplied through
// the environment rather than the file.
package config
