package config

// Config holds all w3connect configuration.
type Config struct {
	DefaultWallet string `json:"default_wallet"`
	ChainID       int64  `json:"chain_id"`
	ChainFamily   string `json:"chain_family"` // "evm" | "solana"
	DomainName    string `json:"domain_name"`
	Action        string `json:"action"`
	PrimaryType   string `json:"primary_type"`

	Bech32Prefix string   `json:"bech32_prefix"`
	AuxPrefixes  []string `json:"aux_prefixes"`

	RetryDelayMS       int      `json:"retry_delay_ms"`
	QuirkPeers         []string `json:"quirk_peers"`
	RequireChainSwitch bool     `json:"require_chain_switch"`

	CatalogFile     string `json:"catalog_file,omitempty"` // YAML wallet catalog; built-ins when empty
	CallbackScheme  string `json:"callback_scheme"`
	KeychainService string `json:"keychain_service"`
	EmbeddedLogin   string `json:"embedded_login,omitempty"` // e.g. "email", "google"
	EmbeddedEmail   string `json:"embedded_email,omitempty"`

	LogLevel    string `json:"log_level"`  // "debug" | "info" | "warn" | "error"
	LogFormat   string `json:"log_format"` // "text" | "json"
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// internal: config dir path used for Save()
	configDir string
}
