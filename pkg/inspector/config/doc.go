/*
Package config loads inspector settings from YAML or JSON.

Values are read through Config, a thin typed view over a decoded document.
Keys may be nested with dots, so "cache.ttl" reads the "ttl" member of the
"cache" object. A missing key or a value of the wrong type yields the
supplied default; loading never fails on an unknown or malformed setting.

	cfg, err := config.FromFile("inspector.yaml")
	if err != nil {
	    return err
	}
	settings := config.SettingsFrom(cfg)

Durations accept Go duration strings ("250ms") or numbers of seconds.
Integers and booleans may also be given as strings, which is how
environment overrides arrive:

	INSPECTOR_CACHE_CAPACITY=200 INSPECTOR_METRICS=prometheus ./app

LoadSettings combines a file, the environment and validation in one call.
*/
package config
