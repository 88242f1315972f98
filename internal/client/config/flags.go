package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the configuration flags on fs and binds them to v so
// that an explicitly set flag overrides file and environment values.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	var d Config
	d.LoadDefaults()

	fs.StringP("config", "c", "", "config file (yaml or json)")
	fs.StringP("server-url", "a", d.ServerURL, "base URL of the journal server")
	fs.String("health-addr", d.HealthAddr, "host:port of the gRPC health endpoint (empty: use /healthz)")
	fs.String("data-dir", d.DataDir, "directory of the local cache")
	fs.String("storage", d.Storage, "local cache backend: sqlite or diskv")
	fs.Duration("debounce", d.Debounce, "delay before an edit is pushed")
	fs.String("timezone", d.Timezone, "IANA zone that decides the current day")
	fs.Bool("watch", d.Watch, "reload when another process changes the cache (diskv)")
	fs.Bool("notify", d.Notify, "show desktop notifications when sync fails")
	fs.BoolP("verbose", "v", d.Verbose, "log debug output to stderr")

	for key, name := range map[string]string{
		"config":      "config",
		"server_url":  "server-url",
		"health_addr": "health-addr",
		"data_dir":    "data-dir",
		"storage":     "storage",
		"debounce":    "debounce",
		"timezone":    "timezone",
		"watch":       "watch",
		"notify":      "notify",
		"verbose":     "verbose",
	} {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
