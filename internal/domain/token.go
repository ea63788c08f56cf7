package domain

// Token represents a tracked ERC-20 style token.
// Corresponds to the tokens table in PostgreSQL.
type Token struct {
	Address     string // PRIMARY KEY, lowercased 0x-hex address
	Symbol      string
	Name        string
	Network     string // one of the Network* constants
	Watchlisted bool   // member of the active collection watchlist
	CreatedAtMs int64  // record creation timestamp (ms)
}

// Supported networks.
const (
	NetworkEthereum = "ethereum"
	NetworkBSC      = "bsc"
	NetworkPolygon  = "polygon"
	NetworkArbitrum = "arbitrum"
	NetworkOptimism = "optimism"
)

// CommonTokens maps well-known symbols to their Ethereum mainnet addresses.
var CommonTokens = map[string]string{
	"WETH": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	"USDC": "0xa0b86a33e6441406e5f1a928f7c7f94f08a18b17",
	"USDT": "0xdac17f958d2ee523a2206206994597c13d831ec7",
	"DAI":  "0x6b175474e89094c44da98b954eedeac495271d0f",
	"WBTC": "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599",
}
