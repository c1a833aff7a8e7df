// Package config defines configuration structures for the gulp CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (GULP_ prefix, optionally from a .env file)
//   - YAML configuration file
//
// Flags win over the environment, which wins over the file.
//
// # Example
//
//	urls:
//	  - https://example.com/a.tar.gz
//	  - https://example.com/b.tar.gz
//	output: temp
//	concurrency: 16
//	report: run.json
//	http:
//	  timeout: 10m
//	  user_agent: gulp/1.0
package config
