package config

// Onboarding defaults. The signed domain and action feed the derived key, so
// changing them changes every derived account.
const (
	DefaultChainID      int64 = 1
	DefaultDomainName         = "dYdX Chain"
	DefaultAction             = "dYdX Chain Onboarding"
	DefaultPrimaryType        = "dYdX"
	DefaultFamily             = "evm"
	DefaultBech32Prefix       = "dydx"

	DefaultRetryDelayMS   = 1000
	DefaultCallbackScheme = "w3connect"
	DefaultKeychain       = "w3connect"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// DefaultQuirkPeers are peers known to reject a sign request spuriously right
// after switching chains.
var DefaultQuirkPeers = []string{"MetaMask Wallet"}

// DefaultAuxPrefixes are extra bech32 prefixes the derived key is reported under.
var DefaultAuxPrefixes = []string{"noble"}
