// Package config reads the run configuration from a file, PLANNER_
// environment variables and command line flags, in rising precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLANNER_SOLVER_DUALS.
const EnvPrefix = "PLANNER"

// Config is the full run configuration.
type Config struct {
	Inputs   Inputs  `mapstructure:"inputs"`
	Scenario string  `mapstructure:"scenario"`
	Results  Results `mapstructure:"results"`
	Solver   Solver  `mapstructure:"solver"`
	LP       LP      `mapstructure:"lp"`
	Sinks    Sinks   `mapstructure:"sinks"`
	Web      Web     `mapstructure:"web"`
	Log      Log     `mapstructure:"log"`
}

// Inputs names the input files. Transposed tables list parameters as rows
// and technologies as columns.
type Inputs struct {
	Timeseries string `mapstructure:"timeseries"`
	Costs      string `mapstructure:"costs"`
	Capacity   string `mapstructure:"capacity"`
	Transposed bool   `mapstructure:"transposed"`
}

// Results selects the results directory. Empty disables the CSV writer.
type Results struct {
	Dir string `mapstructure:"dir"`
}

// Solver tunes the simplex solver. Hours > 0 truncates the horizon.
type Solver struct {
	Tolerance float64 `mapstructure:"tolerance"`
	Duals     bool    `mapstructure:"duals"`
	Hours     int     `mapstructure:"hours"`
	MaxCells  int     `mapstructure:"max_cells"`
}

// LP names the symbolic LP export file. Empty skips the export.
type LP struct {
	Export string `mapstructure:"export"`
}

// Sinks configures the optional result sinks; each is off while its
// location is empty.
type Sinks struct {
	MongoDB MongoDB `mapstructure:"mongodb"`
	SQL     SQL     `mapstructure:"sql"`
	NATS    NATS    `mapstructure:"nats"`
	MQTT    MQTT    `mapstructure:"mqtt"`
	Webhook Webhook `mapstructure:"webhook"`
}

type MongoDB struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SQL struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type NATS struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type MQTT struct {
	Broker string `mapstructure:"broker"`
	Topic  string `mapstructure:"topic"`
	QoS    int    `mapstructure:"qos"`
}

// Webhook posts events and results to URL.
type Webhook struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Web enables the results web service when Listen is set.
type Web struct {
	Listen string `mapstructure:"listen"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inputs.timeseries", "data/timeseries.csv")
	v.SetDefault("inputs.costs", "data/costs.csv")
	v.SetDefault("inputs.capacity", "data/capacity.csv")
	v.SetDefault("inputs.transposed", false)
	v.SetDefault("scenario", "config/scenario/base.yaml")
	v.SetDefault("results.dir", "results/base")
	v.SetDefault("solver.tolerance", 1e-10)
	v.SetDefault("solver.duals", true)
	v.SetDefault("solver.hours", 0)
	v.SetDefault("solver.max_cells", 1<<24)
	v.SetDefault("lp.export", "")
	v.SetDefault("sinks.mongodb.uri", "")
	v.SetDefault("sinks.mongodb.database", "planner")
	v.SetDefault("sinks.sql.driver", "")
	v.SetDefault("sinks.sql.dsn", "")
	v.SetDefault("sinks.nats.url", "")
	v.SetDefault("sinks.nats.subject", "planner")
	v.SetDefault("sinks.mqtt.broker", "")
	v.SetDefault("sinks.mqtt.topic", "planner")
	v.SetDefault("sinks.mqtt.qos", 0)
	v.SetDefault("sinks.webhook.url", "")
	v.SetDefault("sinks.webhook.timeout", "10s")
	v.SetDefault("web.listen", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Flags declares the command line overrides on fs. Flag names match the
// configuration keys.
func Flags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "configuration file (yaml, json or toml)")
	fs.String("scenario", "", "scenario file")
	fs.String("inputs.timeseries", "", "timeseries CSV")
	fs.String("inputs.costs", "", "costs CSV")
	fs.String("inputs.capacity", "", "capacity CSV")
	fs.Bool("inputs.transposed", false, "tables list parameters as rows")
	fs.StringP("results.dir", "o", "", "results directory")
	fs.Bool("solver.duals", true, "collect bus shadow prices")
	fs.Int("solver.hours", 0, "solve only the first N hours")
	fs.String("lp.export", "", "write the symbolic LP to this file")
	fs.String("web.listen", "", "serve results on this address, e.g. :8080")
	fs.String("log.level", "", "debug, info, warn or error")
}

// Load reads the configuration. fs may be nil; only flags the user set
// override the file and environment.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("config: %w", err)
			}
		}
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || !f.Changed || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("config: scenario is not set")
	}
	if c.Inputs.Timeseries == "" {
		return fmt.Errorf("config: inputs.timeseries is not set")
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("config: solver.tolerance must be > 0, got %v", c.Solver.Tolerance)
	}
	if c.Solver.Hours < 0 {
		return fmt.Errorf("config: solver.hours must be >= 0, got %d", c.Solver.Hours)
	}
	switch c.Sinks.SQL.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("config: sinks.sql.driver must be mysql or postgres, got %q", c.Sinks.SQL.Driver)
	}
	if c.Sinks.MQTT.QoS < 0 || c.Sinks.MQTT.QoS > 2 {
		return fmt.Errorf("config: sinks.mqtt.qos must be 0, 1 or 2, got %d", c.Sinks.MQTT.QoS)
	}
	if (c.Sinks.SQL.Driver == "") != (c.Sinks.SQL.DSN == "") {
		return fmt.Errorf("config: sinks.sql needs both driver and dsn")
	}
	return nil
}
