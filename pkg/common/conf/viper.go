package conf

import (
	"errors"
	"flag"
	"strings"

	"github.com/spf13/viper"
)

var configDir = flag.String("config", ".", "directory that holds the configuration file")

type Option func(*conf)

type conf struct {
	configFileType string
	configFilename string
	envPrefix      string
	required       bool
}

func defaults() *conf {
	return &conf{
		configFileType: "yaml",
		configFilename: "config",
		envPrefix:      "sk",
	}
}

func apply(opts ...Option) *conf {
	newConf := defaults()
	for _, opt := range opts {
		opt(newConf)
	}
	return newConf
}

func WithFileType(fileType string) Option {
	return func(c *conf) {
		c.configFileType = fileType
	}
}

func WithFileName(filename string) Option {
	return func(c *conf) {
		c.configFilename = filename
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(c *conf) {
		c.envPrefix = prefix
	}
}

// WithRequired 配置文件缺失时返回错误而不是仅依赖环境变量与默认值
func WithRequired() Option {
	return func(c *conf) {
		c.required = true
	}
}

// Init 读取配置目录下的配置文件，并开启带前缀的环境变量覆盖
func Init(opts ...Option) error {
	return load(viper.GetViper(), *configDir, opts...)
}

func load(v *viper.Viper, dir string, opts ...Option) error {
	cur := apply(opts...)
	v.SetConfigType(cur.configFileType)
	v.AddConfigPath(dir)
	v.SetConfigName(cur.configFilename)
	v.SetEnvPrefix(cur.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && !cur.required {
		return nil
	}
	return err
}
