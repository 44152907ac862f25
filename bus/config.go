package bus

import "log/slog"

// Config defines bus settings.
type Config struct {
	Name              string       `json:"name,omitempty"`
	ChannelBufferSize int          `json:"channel_buffer_size,omitempty"`
	Logger            *slog.Logger `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Name:              "workbench",
		ChannelBufferSize: 64,
		Logger:            slog.Default(),
	}
}

// Merge overwrites c with the non-zero values of source.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.ChannelBufferSize > 0 {
		c.ChannelBufferSize = source.ChannelBufferSize
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
