// Package config loads the settings of the taskq binary: logging, the
// backend tree, the worker supervisor, the HTTP API and cron entries.
//
// Values are layered. Default supplies the base, Load overlays a JSON or
// YAML file, FromEnv overlays TASKQ_* environment variables, and the CLI
// applies its flags last. Validate reports anything Open or the runner
// would reject later.
package config
