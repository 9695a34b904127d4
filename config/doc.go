// Package config provides configuration loading and validation for hubstore.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (HUBSTORE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with the HUBSTORE_ prefix:
//   - server.port → HUBSTORE_SERVER_PORT
//   - driver.s3.bucket → HUBSTORE_DRIVER_S3_BUCKET
//   - proofs.min_proofs → HUBSTORE_PROOFS_MIN_PROOFS
//
// # Configuration Structure
//
//   - Server: port, name (signed into the challenge text), upload limit, timeouts
//   - Driver: backend type, read URL prefix, page size and per-backend blocks
//   - Auth: write whitelist, oldest accepted token time, v1 toggle
//   - Proofs: policy, source (sql or grpc) and an optional Redis cache
//   - Database: SQL proof store
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level; env=prod switches to JSON output
package config
