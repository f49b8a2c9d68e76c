package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/antic-browser/antic/log"
)

// ProfileConfig is one stored browser profile. The core treats it as an
// immutable input record; mutation goes through Config.
type ProfileConfig struct {
	Name      string `mapstructure:"name" json:"name"`
	UserAgent string `mapstructure:"useragent" json:"useragent"`
	Width     int    `mapstructure:"width" json:"width"`
	Height    int    `mapstructure:"height" json:"height"`
	Timezone  string `mapstructure:"timezone" json:"timezone"`
	Language  string `mapstructure:"language" json:"language"`
	Proxy     string `mapstructure:"proxy" json:"proxy"`
	Cookies   string `mapstructure:"cookies" json:"cookies"`
	WebGL     bool   `mapstructure:"webgl" json:"webgl"`
	Vendor    string `mapstructure:"vendor" json:"vendor"`
	CPU       int    `mapstructure:"cpu" json:"cpu"`
	RAM       int    `mapstructure:"ram" json:"ram"`
	Touch     bool   `mapstructure:"touch" json:"touch"`
	Homepage  string `mapstructure:"homepage" json:"homepage"`
}

type GeneralConfig struct {
	Homepage       string `mapstructure:"homepage" json:"homepage"`
	RelayPort      int    `mapstructure:"relay_port" json:"relay_port"`
	CountryDBPath  string `mapstructure:"country_db" json:"country_db"`
	CityDBPath     string `mapstructure:"city_db" json:"city_db"`
	WebhookURL     string `mapstructure:"webhook_url" json:"webhook_url"`
	StrictProfiles bool   `mapstructure:"strict_profiles" json:"strict_profiles"`
}

type Config struct {
	general  *GeneralConfig
	profiles map[string]*ProfileConfig
	cfg_dir  string
	cfg      *viper.Viper
}

const (
	CFG_GENERAL  = "general"
	CFG_PROFILES = "profiles"
)

const (
	DEFAULT_HOMEPAGE   = "https://whoer.net"
	DEFAULT_RELAY_PORT = 1337
	DEFAULT_USERAGENT  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DEFAULT_VENDOR     = "Google Inc."
	DEFAULT_WIDTH      = 1920
	DEFAULT_HEIGHT     = 1080
	DEFAULT_TIMEZONE   = "America/New_York"
	DEFAULT_LANGUAGE   = "en-US"
	DEFAULT_CPU        = 8
	DEFAULT_RAM        = 8
)

func NewConfig(cfg_dir string) (*Config, error) {
	c := &Config{
		general:  &GeneralConfig{},
		profiles: make(map[string]*ProfileConfig),
		cfg_dir:  cfg_dir,
	}

	c.cfg = viper.New()
	c.cfg.SetConfigType("json")

	path := filepath.Join(cfg_dir, "config.json")
	c.cfg.SetConfigFile(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := c.cfg.WriteConfigAs(path); err != nil {
			return nil, err
		}
	}
	if err := c.cfg.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	c.cfg.UnmarshalKey(CFG_GENERAL, &c.general)
	if c.general.Homepage == "" {
		c.general.Homepage = DEFAULT_HOMEPAGE
	}
	if c.general.RelayPort == 0 {
		c.general.RelayPort = DEFAULT_RELAY_PORT
	}
	if c.general.CountryDBPath == "" {
		c.general.CountryDBPath = filepath.Join(cfg_dir, "GeoLite2-Country.mmdb")
	}
	if c.general.CityDBPath == "" {
		c.general.CityDBPath = filepath.Join(cfg_dir, "GeoLite2-City.mmdb")
	}
	c.cfg.Set(CFG_GENERAL, c.general)

	var profiles map[string]*ProfileConfig
	c.cfg.UnmarshalKey(CFG_PROFILES, &profiles)
	for name, p := range profiles {
		p.Name = name
		if err := c.validateProfile(p); err != nil {
			log.Error("profile '%s' rejected: %v", name, err)
			continue
		}
		c.profiles[name] = p
	}

	c.cfg.WriteConfig()
	return c, nil
}

// validateProfile either rejects an incomplete profile (strict mode) or
// substitutes documented defaults for missing fields (the legacy-compatible
// lenient mode).
func (c *Config) validateProfile(p *ProfileConfig) error {
	if c.general.StrictProfiles {
		if p.UserAgent == "" {
			return fmt.Errorf("missing useragent")
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("missing screen dimensions")
		}
		if p.Timezone == "" {
			return fmt.Errorf("missing timezone")
		}
		if p.Language == "" {
			return fmt.Errorf("missing language")
		}
		return nil
	}
	if p.UserAgent == "" {
		p.UserAgent = DEFAULT_USERAGENT
	}
	if p.Width <= 0 {
		p.Width = DEFAULT_WIDTH
	}
	if p.Height <= 0 {
		p.Height = DEFAULT_HEIGHT
	}
	if p.Timezone == "" {
		p.Timezone = DEFAULT_TIMEZONE
	}
	if p.Language == "" {
		p.Language = DEFAULT_LANGUAGE
	}
	if p.Vendor == "" {
		p.Vendor = DEFAULT_VENDOR
	}
	if p.CPU <= 0 {
		p.CPU = DEFAULT_CPU
	}
	if p.RAM <= 0 {
		p.RAM = DEFAULT_RAM
	}
	if p.Homepage == "" {
		p.Homepage = c.general.Homepage
	}
	return nil
}

func (c *Config) SaveProfiles() {
	c.cfg.Set(CFG_PROFILES, c.profiles)
	c.cfg.WriteConfig()
}

func (c *Config) AddProfile(p *ProfileConfig) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, ok := c.profiles[p.Name]; ok {
		return fmt.Errorf("profile already exists: %s", p.Name)
	}
	if err := c.validateProfile(p); err != nil {
		return err
	}
	c.profiles[p.Name] = p
	c.SaveProfiles()
	return nil
}

func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.profiles[name]; !ok {
		return fmt.Errorf("profile not found: %s", name)
	}
	delete(c.profiles, name)
	c.SaveProfiles()
	return nil
}

func (c *Config) GetProfile(name string) (*ProfileConfig, error) {
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile not found: %s", name)
	}
	return p, nil
}

func (c *Config) ProfileNames() []string {
	names := []string{}
	for name := range c.profiles {
		names = append(names, name)
	}
	return names
}

func (c *Config) SetProfileProxy(name string, proxy_str string) error {
	p, err := c.GetProfile(name)
	if err != nil {
		return err
	}
	p.Proxy = proxy_str
	c.SaveProfiles()
	return nil
}

func (c *Config) GetGeneral() *GeneralConfig {
	return c.general
}

func (c *Config) GetCfgDir() string {
	return c.cfg_dir
}

func (c *Config) GetCookiesDir() string {
	return filepath.Join(c.cfg_dir, "cookies")
}

func (c *Config) SetWebhookURL(u string) {
	c.general.WebhookURL = u
	c.cfg.Set(CFG_GENERAL, c.general)
	c.cfg.WriteConfig()
}

func (c *Config) SetStrictProfiles(enabled bool) {
	c.general.StrictProfiles = enabled
	c.cfg.Set(CFG_GENERAL, c.general)
	c.cfg.WriteConfig()
}
