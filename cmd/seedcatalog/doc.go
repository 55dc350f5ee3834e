// Command seedcatalog provides a CLI utility for registering catalog
// entities in the flicks backend database.
//
// Media uploads are validated against the catalog: an asset can only be
// attached to an owner that exists. This tool seeds those owners when a
// deployment runs without an upstream catalog service.
//
// Usage:
//
//	seedcatalog <command> [args]
//
// Commands:
//
//	add <type> <name>   Register a catalog entity. Valid types are
//	                    product, shop, and manufacturer. Prints the
//	                    assigned id.
//
//	check <type> <id>   Report whether an entity exists. Exits non-zero
//	                    when it does not.
//
// Environment:
//
//	DATA_DIR - Path to the data directory (default: /data)
package main
