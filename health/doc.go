// Package health reports whether the bridge and the services it depends on are usable.
package health
