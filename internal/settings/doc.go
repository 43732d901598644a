// Package settings loads and saves the user's preferences as TOML.
//
// A missing file, or keys missing from it, fall back to [Default]. Save
// replaces the file atomically under an advisory lock. Values can be read
// and written by name with [Settings.Get] and [Settings.Set], which parse
// the new value according to the type of the default.
package settings
