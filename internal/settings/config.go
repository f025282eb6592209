package settings

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Game identifies a launchable game client.
type Game string

const (
	GameRS3      Game = "rs3"
	GameOSRS     Game = "osrs"
	GameRuneLite Game = "runelite"
	GameHDOS     Game = "hdos"
)

// Selection points at the account the launcher treats as active.
type Selection struct {
	UserID    *string `json:"user_id"`
	AccountID *string `json:"account_id"`
	Game      *string `json:"game,omitempty"`
}

// UserDetails holds per-user preferences keyed by user id.
type UserDetails struct {
	AccountID string `json:"account_id,omitempty"`
}

// Config is the main launcher config document.
//
// Launch commands are nullable: nil means "use the built-in default". Keys not
// modelled here are kept in Extra and written back unchanged.
type Config struct {
	Selected    Selection              `json:"selected"`
	UserDetails map[string]UserDetails `json:"userDetails"`

	RSLaunchCommand       *string `json:"rs_launch_command"`
	OSRSLaunchCommand     *string `json:"osrs_launch_command"`
	RuneLiteLaunchCommand *string `json:"runelite_launch_command"`
	HDOSLaunchCommand     *string `json:"hdos_launch_command"`

	RuneLiteJarPath     *string `json:"runelite_jar_path"`
	UseDarkTheme        bool    `json:"use_dark_theme"`
	FlatpakRichPresence bool    `json:"flatpak_rich_presence"`
	CloseAfterLaunch    bool    `json:"close_after_launch"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownConfigKeys = []string{
	"selected", "userDetails",
	"rs_launch_command", "osrs_launch_command", "runelite_launch_command", "hdos_launch_command",
	"runelite_jar_path", "use_dark_theme", "flatpak_rich_presence", "close_after_launch",
}

// configFields is Config without its JSON methods.
type configFields Config

// MarshalJSON writes the modelled fields and merges Extra keys that do not
// collide with them.
func (c Config) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(configFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return data, nil
	}

	merged := make(map[string]json.RawMessage, len(knownConfigKeys)+len(c.Extra))
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the modelled fields and keeps every other key in Extra.
func (c *Config) UnmarshalJSON(data []byte) error {
	var fields configFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownConfigKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		fields.Extra = all
	} else {
		fields.Extra = nil
	}

	*c = Config(fields)
	return nil
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Selected = Selection{
		UserID:    clonePtr(c.Selected.UserID),
		AccountID: clonePtr(c.Selected.AccountID),
		Game:      clonePtr(c.Selected.Game),
	}
	out.UserDetails = maps.Clone(c.UserDetails)
	out.RSLaunchCommand = clonePtr(c.RSLaunchCommand)
	out.OSRSLaunchCommand = clonePtr(c.OSRSLaunchCommand)
	out.RuneLiteLaunchCommand = clonePtr(c.RuneLiteLaunchCommand)
	out.HDOSLaunchCommand = clonePtr(c.HDOSLaunchCommand)
	out.RuneLiteJarPath = clonePtr(c.RuneLiteJarPath)
	if c.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// launchCommand returns the field holding the launch command for g.
func (c *Config) launchCommand(g Game) (**string, error) {
	switch g {
	case GameRS3:
		return &c.RSLaunchCommand, nil
	case GameOSRS:
		return &c.OSRSLaunchCommand, nil
	case GameRuneLite:
		return &c.RuneLiteLaunchCommand, nil
	case GameHDOS:
		return &c.HDOSLaunchCommand, nil
	default:
		return nil, fmt.Errorf("unknown game: %q", g)
	}
}

// normalize turns empty launch commands into nil so "unset" has a single
// representation on the wire.
func (c *Config) normalize() {
	for _, field := range []**string{
		&c.RSLaunchCommand,
		&c.OSRSLaunchCommand,
		&c.RuneLiteLaunchCommand,
		&c.HDOSLaunchCommand,
	} {
		if *field != nil && **field == "" {
			*field = nil
		}
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
