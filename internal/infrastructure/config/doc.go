// Package config handles loading, validating and rewriting the bridge
// configuration file.
//
// This package manages:
//   - The sectioned key/value Document (INI by default, YAML for .yaml/.yml)
//   - The typed Config view with defaults and validation
//   - Overriding settings with M2B_* environment variables
//   - Atomic rewrite of the whole file after inventory changes
//
// The [devices] and [commands] sections and [logging] level are written by
// the command store; everything else is read once at startup.
//
// Security Considerations:
//   - The MQTT password and InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("./data/config.ini")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Prefix)
package config
