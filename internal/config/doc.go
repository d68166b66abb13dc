// Package config handles configuration loading for the csvexport server.
//
// # Configuration File
//
// The file location is resolved in order:
//
//  1. Path from the CSVEXPORT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/csvexport/config.yaml (~/.config when unset)
//
// Files ending in .toml are read as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CSVEXPORT_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Export Switches
//
//	exports:
//	  require_perm: true     # only users with <app_label>.csv_<model_name>
//	  global_enabled: false  # add the action to every registered model
//
// EXPORTS_REQUIRE_PERM and CSV_GLOBAL_EXPORTS_ENABLED override these when set.
// The DJANGO_-prefixed forms of both are accepted too and lose to the
// unprefixed ones.
//
// # Models
//
// Each entry under models exposes one SQLite table in the admin:
//
//	models:
//	  - app_label: shop
//	    name: Order
//	    csv_export: true
//	    csv_fields: [id, customer, total]
//	    csv_filename: orders
//
// csv_export attaches the export action to that model alone. When fields is
// omitted the columns are read from the table at startup.
package config
