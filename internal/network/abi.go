package network

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI versions of the signature registry contract. Deployed contracts have
// disagreed on event layout over time, so each network entry pins one.
const (
	ABIVersionV1 = "opensig-v1"
	ABIVersionV0 = "opensig-v0"
)

// DefaultABIVersion is used when a network entry does not name one.
const DefaultABIVersion = ABIVersionV1

// EventName and RegisterMethod name the contract members the protocol uses.
const (
	EventName      = "Signature"
	RegisterMethod = "registerSignature"
)

var abiDefinitions = map[string]string{
	// Signature(uint256 time, address indexed signer, bytes32 indexed signature, bytes data)
	ABIVersionV1: `[
		{"anonymous":false,"inputs":[
			{"indexed":false,"internalType":"uint256","name":"time","type":"uint256"},
			{"indexed":true,"internalType":"address","name":"signer","type":"address"},
			{"indexed":true,"internalType":"bytes32","name":"signature","type":"bytes32"},
			{"indexed":false,"internalType":"bytes","name":"data","type":"bytes"}],
		 "name":"Signature","type":"event"},
		{"inputs":[{"internalType":"bytes32","name":"sig_","type":"bytes32"}],
		 "name":"isRegistered","outputs":[{"internalType":"bool","name":"","type":"bool"}],
		 "stateMutability":"view","type":"function"},
		{"inputs":[
			{"internalType":"bytes32","name":"sig_","type":"bytes32"},
			{"internalType":"bytes","name":"data_","type":"bytes"}],
		 "name":"registerSignature","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`,
	// Signature(address indexed signer, bytes32 indexed signature, bytes data)
	ABIVersionV0: `[
		{"anonymous":false,"inputs":[
			{"indexed":true,"internalType":"address","name":"signer","type":"address"},
			{"indexed":true,"internalType":"bytes32","name":"signature","type":"bytes32"},
			{"indexed":false,"internalType":"bytes","name":"data","type":"bytes"}],
		 "name":"Signature","type":"event"},
		{"inputs":[
			{"internalType":"bytes32","name":"sig_","type":"bytes32"},
			{"internalType":"bytes","name":"data_","type":"bytes"}],
		 "name":"registerSignature","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`,
}

// ABIVersions returns the known ABI version names, sorted.
func ABIVersions() []string {
	names := make([]string, 0, len(abiDefinitions))
	for name := range abiDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseABI returns the parsed contract ABI for version.
func ParseABI(version string) (abi.ABI, error) {
	def, ok := abiDefinitions[version]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown abi version %q", version)
	}
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing abi %s: %w", version, err)
	}
	if _, ok := parsed.Events[EventName]; !ok {
		return abi.ABI{}, fmt.Errorf("abi %s has no %s event", version, EventName)
	}
	if _, ok := parsed.Methods[RegisterMethod]; !ok {
		return abi.ABI{}, fmt.Errorf("abi %s has no %s method", version, RegisterMethod)
	}
	return parsed, nil
}
