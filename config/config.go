package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Secret holds a credential. It renders redacted in logs and formatted
// output; use Value() to obtain the actual token.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func (s Secret) Value() string {
	return string(s)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

type Config struct {
	Hosts  []Host      `yaml:"hosts"`
	Prune  PruneConfig `yaml:"prune"`
	DryRun *bool       `yaml:"dry_run"`
}

type Host struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	BaseUrl string `yaml:"base"`
	Token   Secret `yaml:"token"`
	Usage   string `yaml:"use_as"`

	// Source hosts: owners whose public repositories are listed in
	// addition to everything the token can see. Accepts a list or a
	// comma-separated string.
	Owners []string `yaml:"owners"`

	// Mirror hosts: target namespace. GitLab wants the numeric group id
	// and the group path, gitea wants the organization name.
	GroupId   int    `yaml:"group_id"`
	GroupPath string `yaml:"group_path"`
	Org       string `yaml:"org"`
}

type PruneConfig struct {
	GraceDays *int     `yaml:"grace_days"`
	Exclude   []string `yaml:"exclude"`
	StateFile string   `yaml:"state_file"`
}

func (config *Config) massageConfig() error {
	sources := 0
	mirrors := 0

	for i := range config.Hosts {
		err := (&config.Hosts[i]).massageConfig(i)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to parse host %d config", i)
			return err
		}

		switch config.Hosts[i].Usage {
		case "source":
			sources += 1
		case "mirror":
			mirrors += 1
		}
	}

	if sources != 1 {
		return fmt.Errorf("expected exactly one source host, found %d", sources)
	}
	if mirrors != 1 {
		return fmt.Errorf("expected exactly one mirror host, found %d", mirrors)
	}

	(&config.Prune).massageConfig()

	if config.DryRun == nil {
		// Destructive operations are opt-in
		dryRun := true
		config.DryRun = &dryRun
	}

	return nil
}

func (prune *PruneConfig) massageConfig() {
	if prune.GraceDays == nil {
		graceDays := 7
		prune.GraceDays = &graceDays
	}

	if prune.StateFile == "" {
		prune.StateFile = "prune_state.json"
	}

	if prune.Exclude == nil {
		prune.Exclude = []string{"mirror-scripts"}
	} else {
		prune.Exclude = splitList(prune.Exclude)
	}
}

func (prune *PruneConfig) ExcludeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(prune.Exclude))
	for _, name := range prune.Exclude {
		set[name] = struct{}{}
	}
	return set
}

// splitList flattens comma-separated entries, so both YAML lists and the
// original comma-separated environment value work.
func splitList(values []string) []string {
	result := []string{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func readEnvVar(logger zerolog.Logger, val *string) error {
	if strings.HasPrefix(*val, "$") {
		name := strings.TrimPrefix(*val, "$")
		value, exists := os.LookupEnv(name)
		if exists {
			logger.Debug().Msgf("Looked up value from $%s", name)
			*val = value
		} else {
			return fmt.Errorf("missing environment variable $%s", name)
		}
	}

	return nil
}

func (host *Host) massageConfig(i int) error {
	logger := log.With().Int("host", i).Logger()

	if host.Type == "" {
		return errors.New("missing host type")
	}

	if host.Type != "github" && host.Type != "gitlab" && host.Type != "gitea" {
		return fmt.Errorf("invalid host type: %s", host.Type)
	}

	if host.Usage != "source" && host.Usage != "mirror" {
		return fmt.Errorf("invalid use_as value: %s", host.Usage)
	}

	switch host.Type {
	case "github":
		if host.Usage != "source" {
			return errors.New("github hosts can only be used as source")
		}
		if host.BaseUrl == "" {
			host.BaseUrl = "https://github.com"
		}
	case "gitlab":
		if host.Usage != "mirror" {
			return errors.New("gitlab hosts can only be used as mirror")
		}
		if host.BaseUrl == "" {
			host.BaseUrl = "https://gitlab.com"
		}
		if host.GroupId == 0 {
			return errors.New("a group_id is required for a gitlab mirror host")
		}
		if host.GroupPath == "" {
			return errors.New("a group_path is required for a gitlab mirror host")
		}
	case "gitea":
		if host.Usage != "mirror" {
			return errors.New("gitea hosts can only be used as mirror")
		}
		if host.BaseUrl == "" {
			return errors.New("a base url is required for a gitea host")
		}
		if host.Org == "" {
			return errors.New("an org is required for a gitea mirror host")
		}
	}

	if host.Name == "" {
		logger.Info().Msgf("Defaulted name to type (%s)", host.Type)
		host.Name = host.Type
	}

	if host.Token == "" {
		return errors.New("missing token for authentication")
	}

	token := string(host.Token)
	err := readEnvVar(logger, &token)
	if err != nil {
		return err
	}
	host.Token = Secret(token)

	err = readEnvVar(logger, &host.BaseUrl)
	if err != nil {
		return err
	}

	host.Owners = splitList(host.Owners)

	return nil
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(raw, &config)
	if err != nil {
		return nil, err
	}

	err = config.massageConfig()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// Source returns the configured source host.
func (config *Config) Source() *Host {
	for i := range config.Hosts {
		if config.Hosts[i].Usage == "source" {
			return &config.Hosts[i]
		}
	}
	return nil
}

// Mirror returns the configured mirror host.
func (config *Config) Mirror() *Host {
	for i := range config.Hosts {
		if config.Hosts[i].Usage == "mirror" {
			return &config.Hosts[i]
		}
	}
	return nil
}
