package catalog

// Built-in wallet ids.
const (
	IDMetaMask = "metamask"
	IDRainbow  = "rainbow"
	IDCoinbase = "coinbase"
	IDTrust    = "trust"
	IDPhantom  = "phantom"
	IDEmbedded = "embedded"
	IDBypass   = "debug-bypass"
)

// Defaults returns the built-in wallet descriptors.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			ID: IDMetaMask, Name: "MetaMask", Kind: KindLink,
			ImageURL:      "https://registry.walletconnect.com/v2/logo/md/5195e9db-94d8-4579-6f11-ef553be95100",
			Homepage:      "https://metamask.io",
			Chains:        []ChainFamily{FamilyEVM},
			NativeScheme:  "metamask://",
			UniversalLink: "https://metamask.app.link",
			AppStoreID:    "id1438144202",
			PackageName:   "io.metamask",
			PeerNames:     []string{"MetaMask Wallet", "MetaMask"},
		},
		{
			ID: IDRainbow, Name: "Rainbow", Kind: KindLink,
			Homepage:      "https://rainbow.me",
			Chains:        []ChainFamily{FamilyEVM},
			NativeScheme:  "rainbow://",
			UniversalLink: "https://rnbwapp.com",
			AppStoreID:    "id1457119021",
			PackageName:   "me.rainbow",
			PeerNames:     []string{"Rainbow"},
		},
		{
			ID: IDCoinbase, Name: "Coinbase Wallet", Kind: KindLink,
			Homepage:      "https://www.coinbase.com/wallet",
			Chains:        []ChainFamily{FamilyEVM},
			NativeScheme:  "cbwallet://",
			UniversalLink: "https://go.cb-w.com",
			AppStoreID:    "id1278383455",
			PackageName:   "org.toshi",
			PeerNames:     []string{"Coinbase Wallet"},
		},
		{
			ID: IDTrust, Name: "Trust Wallet", Kind: KindLink,
			Homepage:      "https://trustwallet.com",
			Chains:        []ChainFamily{FamilyEVM, FamilySolana},
			NativeScheme:  "trust://",
			UniversalLink: "https://link.trustwallet.com",
			AppStoreID:    "id1288339409",
			PackageName:   "com.wallet.crypto.trustapp",
			PeerNames:     []string{"Trust Wallet"},
		},
		{
			ID: IDPhantom, Name: "Phantom", Kind: KindLink,
			Homepage:     "https://phantom.app",
			Chains:       []ChainFamily{FamilySolana, FamilyEVM},
			NativeScheme: "phantom://",
			PackageName:  "app.phantom",
			PeerNames:    []string{"Phantom"},
		},
		{
			ID: IDEmbedded, Name: "Embedded Wallet", Kind: KindEmbedded,
			Chains: []ChainFamily{FamilyEVM},
		},
		{
			ID: IDBypass, Name: "Debug Bypass", Kind: KindBypass,
			Chains: []ChainFamily{FamilyEVM, FamilySolana},
		},
	}
}
