// Package config resolves deskctl settings from flags, GENDESK_* environment
// variables and ~/.gendesk/config.yaml, in that order of precedence.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	configDirName = ".gendesk"
	envPrefix     = "GENDESK"

	keyURL    = "url"
	keyAPIKey = "apiKey"
	keyModel  = "model"
)

var cfgFile string

// Settings is everything deskctl needs to reach deskd
type Settings struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
	// Model is the default model for generate and regenerate; empty means
	// the server default.
	Model string `yaml:"model,omitempty"`
}

// InitConfig registers settings loading with cobra
func InitConfig() {
	cobra.OnInitialize(loadConfig)
}

// AddFlags adds the connection flags to cmd and binds them to viper, so a
// set flag wins over the environment and the config file.
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.gendesk/config.yaml)")
	flags.String("url", "", "deskd API endpoint")
	flags.String("api-key", "", "deskd API key")

	viper.BindPFlag(keyURL, flags.Lookup("url"))
	viper.BindPFlag(keyAPIKey, flags.Lookup("api-key"))
	bindEnv()
}

// bindEnv maps GENDESK_URL, GENDESK_API_KEY (or GENDESK_APIKEY) and
// GENDESK_MODEL onto their keys.
func bindEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.BindEnv(keyURL, envPrefix+"_URL")
	viper.BindEnv(keyAPIKey, envPrefix+"_API_KEY", envPrefix+"_APIKEY")
	viper.BindEnv(keyModel, envPrefix+"_MODEL")
}

func loadConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, configDirName))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// a missing config file is fine; flags and env may cover everything
	_ = viper.ReadInConfig()
}

// Current returns the resolved settings
func Current() Settings {
	return Settings{
		URL:    strings.TrimRight(viper.GetString(keyURL), "/"),
		APIKey: viper.GetString(keyAPIKey),
		Model:  viper.GetString(keyModel),
	}
}

// Validate checks that deskd can be reached with s
func (s Settings) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("deskd URL is required (set GENDESK_URL, --url, or url in the config file)")
	}
	if s.APIKey == "" {
		return fmt.Errorf("deskd API key is required (set GENDESK_API_KEY, --api-key, or apiKey in the config file)")
	}
	return nil
}

// Prompt asks for the URL and API key, keeping current values on empty
// input. The key is read without echo when in is a terminal.
func Prompt(in io.Reader, out io.Writer, current Settings) (Settings, error) {
	reader := bufio.NewReader(in)
	next := current

	fmt.Fprint(out, "deskd URL")
	if current.URL != "" {
		fmt.Fprintf(out, " [%s]", current.URL)
	}
	fmt.Fprint(out, ": ")

	line, err := readLine(reader)
	if err != nil {
		return Settings{}, err
	}
	if line != "" {
		next.URL = strings.TrimRight(line, "/")
	}

	fmt.Fprint(out, "deskd API Key")
	if current.APIKey != "" {
		fmt.Fprint(out, " [hidden]")
	}
	fmt.Fprint(out, ": ")

	key, err := readSecret(in, reader)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read API key: %w", err)
	}
	fmt.Fprintln(out)
	if key != "" {
		next.APIKey = key
	}

	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	return next, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readSecret(in io.Reader, buffered *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(buffered)
}

// DefaultConfigFile returns ~/.gendesk/config.yaml
func DefaultConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName, "config.yaml"), nil
}

// Save writes s to path with owner-only permissions, creating its directory.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(keyURL, s.URL)
	viper.Set(keyAPIKey, s.APIKey)
	if s.Model != "" {
		viper.Set(keyModel, s.Model)
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// MaskKey shows only the ends of an API key
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
