// Package config loads runtime configuration for the journal CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional YAML/JSON file: --config, or config.yaml in the data directory.
//  3. Environment variables prefixed with JOURNAL_ (JOURNAL_SERVER_URL, ...).
//  4. Command-line flags registered by BindFlags.
//
// # File schema
//
//	server_url: http://127.0.0.1:8080
//	health_addr: 127.0.0.1:50051
//	data_dir: ~/.journalkeeper
//	storage: sqlite        # or diskv
//	debounce: 600ms
//	timezone: Europe/Riga
//	watch: true
//	notify: false
//
// Durations accept Go duration strings. data_dir is expanded with go-homedir.
package config
