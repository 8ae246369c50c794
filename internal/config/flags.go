package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user set are applied.
type Flags struct {
	fs *pflag.FlagSet

	mode        string
	maxSlots    int
	symbols     []string
	cache       string
	redisAddr   string
	book        string
	databaseURL string
	listen      string
}

// BindFlags registers the override flags on fs
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.mode, "mode", "", "run mode: READONLY, PAPER or LIVE")
	fs.IntVar(&f.maxSlots, "max-slots", 0, "maximum concurrent core positions (3-5)")
	fs.StringSliceVar(&f.symbols, "symbols", nil, "comma-separated candidate universe")
	fs.StringVar(&f.cache, "cache", "", "cycle cache backend: memory or redis")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for the redis cache backend")
	fs.StringVar(&f.book, "book", "", "path to the YAML trade book")
	fs.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL DSN for the trade book")
	fs.StringVar(&f.listen, "listen", "", "HTTP listen address")
	return f
}

// Apply copies changed flags into c. Callers re-run Validate afterwards.
func (f *Flags) Apply(c *Config) {
	if f.fs.Changed("mode") {
		c.Mode.Mode = f.mode
	}
	if f.fs.Changed("max-slots") {
		c.Slots.MaxSlots = f.maxSlots
	}
	if f.fs.Changed("symbols") {
		c.Universe = append([]string(nil), f.symbols...)
	}
	if f.fs.Changed("cache") {
		c.Cache.Backend = f.cache
	}
	if f.fs.Changed("redis-addr") {
		c.Cache.Redis.Addr = f.redisAddr
	}
	if f.fs.Changed("book") {
		c.Portfolio.Source = "file"
		c.Portfolio.Path = f.book
	}
	if f.fs.Changed("database-url") {
		c.Portfolio.Source = "postgres"
		c.Portfolio.DatabaseURL = f.databaseURL
	}
	if f.fs.Changed("listen") {
		c.Server.Addr = f.listen
	}
}
