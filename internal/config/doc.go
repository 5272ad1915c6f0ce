// Package config flattens a hierarchical YAML document into an immutable
// store of dotted paths ("application.datasource.hosts.[0]") with typed
// accessors, and resolves the service settings from it together with
// environment variables and CLI flags, with precedence: CLI flags > YAML
// config > Environment variables > Defaults.
//
// Accessors distinguish three outcomes: the key is absent (ok is false), the
// key is present but its value does not parse (a *ParseError), or a value.
package config
