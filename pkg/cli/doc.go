// Package cli implements the plugweave command line.
//
// Every subcommand shares the persistent flags --config, --root, --no-plugins,
// --log-level and --log-format, which override the viper configuration loaded
// from PLUGWEAVE_* variables and the optional config file.
//
//	plugweave list [package...]          plugin classes, or --full for the full registry
//	plugweave dirs [--locations]         expanded search roots
//	plugweave inspect <package> <class>  one class with its override lineage
//	plugweave watch                      reload on change until interrupted
//	plugweave serve                      inspection API, health probes, metrics
//	plugweave pack <tree> <archive.zip>  zip a plugin tree into a search root
//	plugweave validate [root...]         decode modules without loading them
package cli
