package boardcfg

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"poise/src/lib/trust"
)

// Board-level parameters for bringing up the entry layer: where the
// kernel stack lives, where user task stacks may be placed, and how
// chatty the log should be.  Values come from a config file with
// environment overrides (POISE_ prefix); everything has a sane
// default so the zero-config case boots.

type Config struct {
	KernelStackBase uint32 `mapstructure:"kernel_stack_base"`
	KernelStackSize uint32 `mapstructure:"kernel_stack_size"`
	UserRegionBase  uint32 `mapstructure:"user_region_base"`
	UserRegionSize  uint32 `mapstructure:"user_region_size"`
	TaskStackSize   uint32 `mapstructure:"task_stack_size"`
	LogMask         string `mapstructure:"log_mask"`
}

const EnvPrefix = "POISE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("kernel_stack_base", 0x4000_0000)
	v.SetDefault("kernel_stack_size", 0x4000)
	v.SetDefault("user_region_base", 0x8000_0000)
	v.SetDefault("user_region_size", 0x10_0000)
	v.SetDefault("task_stack_size", 0x2000)
	v.SetDefault("log_mask", "error,warn,info")
}

// Load reads the configuration from path.  An empty path means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading board config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding board config: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) check() error {
	if c.KernelStackSize == 0 || c.KernelStackSize%8 != 0 {
		return fmt.Errorf("kernel stack size %#x must be a positive multiple of 8", c.KernelStackSize)
	}
	if c.TaskStackSize == 0 || c.TaskStackSize > c.UserRegionSize {
		return fmt.Errorf("task stack size %#x does not fit the user region %#x",
			c.TaskStackSize, c.UserRegionSize)
	}
	if c.KernelStackBase+c.KernelStackSize > c.UserRegionBase &&
		c.UserRegionBase+c.UserRegionSize > c.KernelStackBase {
		return fmt.Errorf("kernel stack and user region overlap")
	}
	return nil
}

func (c *Config) KernelStackTop() uint32 {
	return c.KernelStackBase + c.KernelStackSize
}

// TaskStack returns the stack region for the nth task, carved from
// the top of the user region downward.
func (c *Config) TaskStack(n int) (low uint32, high uint32) {
	high = c.UserRegionBase + c.UserRegionSize - uint32(n)*c.TaskStackSize
	low = high - c.TaskStackSize
	return low, high
}

// TrustLevel translates the configured log mask into the logger's
// level bits.  Unknown names are ignored rather than fatal; a typo in
// a config file should not keep the board from coming up.
func (c *Config) TrustLevel() trust.MaskLevel {
	level := trust.Nothing
	for _, name := range strings.Split(c.LogMask, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "error":
			level |= trust.ErrorMask
		case "warn":
			level |= trust.WarnMask
		case "info":
			level |= trust.InfoMask
		case "debug":
			level |= trust.DebugMask
		case "stats":
			level |= trust.StatsMask
		}
	}
	if level == trust.Nothing {
		level = trust.ErrorMask
	}
	return level
}
