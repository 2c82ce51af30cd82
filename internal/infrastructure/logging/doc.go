// Package logging provides structured logging for the hashpipe gateway.
//
// It wraps log/slog with default attributes (service, version), level
// filtering and a choice of text or JSON output:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stdout"   # stdout, stderr
//
// Components receive child loggers via Component so every entry carries a
// component attribute.
package logging
