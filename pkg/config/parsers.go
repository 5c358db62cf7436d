package config

import "flag"

// Flags holds parsed command-line flag values and which were set
// explicitly on the command line.
type Flags struct {
	DB     string
	Config string
	Level  string
	Set    map[string]bool
}

// ParseCommandFlags parses the process flags. Centralized here so main
// stays thin and tests can construct Flags directly.
func ParseCommandFlags() Flags {
	dbPtr := flag.String("db", "./.voiceboard", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	lvlPtr := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{DB: *dbPtr, Config: *cfgPtr, Level: *lvlPtr, Set: set}
}

// Apply folds explicitly-set flags over a loaded config.
func (f Flags) Apply(c *Config) {
	if f.Set["db"] {
		c.Storage.DBPath = f.DB
	}
	if f.Set["log-level"] && f.Level != "" {
		c.Log.Level = f.Level
	}
}
