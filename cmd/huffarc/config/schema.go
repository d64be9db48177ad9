package config

// schema lists all known configuration values.
type schema struct {
	Logger struct {
		Level     string `mapstructure:"level"`
		Encoding  string `mapstructure:"encoding"`
		Timestamp bool   `mapstructure:"timestamp"`
	} `mapstructure:"logger"`

	Pack struct {
		Multithreaded bool   `mapstructure:"multithreaded"`
		BufferSize    int    `mapstructure:"buffer_size"`
		Index         bool   `mapstructure:"index"`
		IndexCodec    string `mapstructure:"index_codec"`
	} `mapstructure:"pack"`

	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
}
