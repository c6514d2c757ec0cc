package network

// Builtin returns the networks the registry contract is deployed on.
func Builtin() []Config {
	return []Config{
		{
			ChainID:       1,
			Name:          "Ethereum",
			Provider:      KindWallet,
			Endpoint:      "https://ethereum-rpc.publicnode.com",
			Contract:      "0x73eF7A3643aCbC3D616Bd5f7Ee5153Aa5f14DB30",
			CreationBlock: 16764681,
			BlockTimeMs:   12000,
			ExplorerURL:   "https://etherscan.io/tx/{tx}#eventlog",
		},
		{
			ChainID:       137,
			Name:          "Polygon",
			Provider:      KindRPC,
			Endpoint:      "https://polygon-rpc.com",
			Contract:      "0x4037E81D79aD0E917De012dE009ff41c740BB453",
			CreationBlock: 40031474,
			BlockTimeMs:   2000,
			ExplorerURL:   "https://polygonscan.com/tx/{tx}#eventlog",
		},
		{
			ChainID:               56,
			Name:                  "Binance Smart Chain",
			Provider:              KindAnkr,
			Endpoint:              "https://rpc.ankr.com/multichain",
			RPCEndpoint:           "https://rpc.ankr.com/bsc",
			Blockchain:            "bsc",
			Contract:              "0xF6656646ECf7bD4100ec0014163F6CaD44eA1715",
			CreationBlock:         26229027,
			BlockTimeMs:           3000,
			ConfirmationLatencyMs: 5000,
			ExplorerURL:           "https://bscscan.com/tx/{tx}#eventlog",
		},
		{
			ChainID:               43114,
			Name:                  "Avalanche",
			Provider:              KindAnkr,
			Endpoint:              "https://rpc.ankr.com/multichain",
			RPCEndpoint:           "https://rpc.ankr.com/avalanche",
			Blockchain:            "avalanche",
			Contract:              "0xF6656646ECf7bD4100ec0014163F6CaD44eA1715",
			CreationBlock:         27645459,
			BlockTimeMs:           2000,
			ConfirmationLatencyMs: 5000,
			ExplorerURL:           "https://snowtrace.io/tx/{tx}#eventlog",
		},
		{
			ChainID:       8453,
			Name:          "Base Mainnet",
			Provider:      KindAnkr,
			Endpoint:      "https://rpc.ankr.com/multichain",
			RPCEndpoint:   "https://rpc.ankr.com/base",
			Blockchain:    "base",
			Contract:      "0xC9bf7c7242EA0fc13698Adf585f06A8F441C9155",
			CreationBlock: 27537843,
			BlockTimeMs:   2000,
			ExplorerURL:   "https://basescan.org/tx/{tx}#eventlog",
		},
		{
			ChainID:       1440002,
			Name:          "XRPL EVM Devnet",
			Provider:      KindWallet,
			Contract:      "0xB6FCE33A84253037A7Fac6291929D2488973Ff38",
			CreationBlock: 15078501,
			BlockTimeMs:   3500,
			ExplorerURL:   "https://explorer.xrplevm.org/tx/{tx}",
		},
		{
			ChainID:               11155111,
			Name:                  "Sepolia",
			Provider:              KindAnkr,
			Endpoint:              "https://rpc.ankr.com/multichain",
			RPCEndpoint:           "https://rpc.ankr.com/eth_sepolia",
			Blockchain:            "eth_sepolia",
			Contract:              "0xF6656646ECf7bD4100ec0014163F6CaD44eA1715",
			CreationBlock:         3030122,
			BlockTimeMs:           12000,
			ConfirmationLatencyMs: 5000,
			ExplorerURL:           "https://sepolia.etherscan.io/tx/{tx}#eventlog",
		},
	}
}
