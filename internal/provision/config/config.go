package config

// Config holds the provisioning tool configuration.
type Config struct {
	DirectoryURL string `mapstructure:"directory_url"`
	StoreDir     string `mapstructure:"store_dir"`
	CAPath       string `mapstructure:"ca_path"`
	FetchTimeout int    `mapstructure:"fetch_timeout"` // seconds

	// Profile synthesis knobs. Defaults match the values PIA's OpenVPN
	// endpoints expect.
	Port   int    `mapstructure:"port"`
	Cipher string `mapstructure:"cipher"`
	Auth   string `mapstructure:"auth"`
	DNS    string `mapstructure:"dns"`

	// EmbedPassword controls whether the password is written into the
	// profile (password-flags=0) or left for NetworkManager to prompt at
	// connect time (password-flags=1).
	EmbedPassword bool `mapstructure:"embed_password"`

	// CredentialSource selects where the login/password come from:
	// "prompt" (interactive terminal) or "keyring" (system keyring).
	CredentialSource string `mapstructure:"credential_source"`

	// ReloadMode selects how NetworkManager is told to reload:
	// "dbus", "exec" or "none".
	ReloadMode string `mapstructure:"reload_mode"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}
