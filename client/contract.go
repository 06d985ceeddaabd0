package client

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// registryABIJSON is the SetRegistry contract's ABI (spec §6 chain wire
// contract): commitBatch, totalCommitments, authorizedSequencers, and the
// BatchCommitted event.
const registryABIJSON = `[
	{
		"type": "function",
		"name": "commitBatch",
		"inputs": [
			{"name": "_batchId", "type": "bytes32"},
			{"name": "_tenantId", "type": "bytes32"},
			{"name": "_storeId", "type": "bytes32"},
			{"name": "_eventsRoot", "type": "bytes32"},
			{"name": "_prevStateRoot", "type": "bytes32"},
			{"name": "_newStateRoot", "type": "bytes32"},
			{"name": "_sequenceStart", "type": "uint64"},
			{"name": "_sequenceEnd", "type": "uint64"},
			{"name": "_eventCount", "type": "uint32"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "totalCommitments",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "authorizedSequencers",
		"inputs": [{"name": "", "type": "address"}],
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "BatchCommitted",
		"anonymous": false,
		"inputs": [
			{"name": "batchId", "type": "bytes32", "indexed": true},
			{"name": "tenantStoreKey", "type": "bytes32", "indexed": true},
			{"name": "eventsRoot", "type": "bytes32", "indexed": false},
			{"name": "newStateRoot", "type": "bytes32", "indexed": false},
			{"name": "sequenceStart", "type": "uint64", "indexed": false},
			{"name": "sequenceEnd", "type": "uint64", "indexed": false},
			{"name": "eventCount", "type": "uint32", "indexed": false}
		]
	}
]`

// RegistryABI is the parsed form of registryABIJSON, built once at init time
// the way zk/contracts declares its topic table.
var RegistryABI abi.ABI

// BatchCommittedTopic is the event signature hash for BatchCommitted, used
// by BatchHeaderRange-style reconciliation reads.
var BatchCommittedTopic common.Hash

func init() {
	parsed, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		panic("client: invalid registry ABI: " + err.Error())
	}
	RegistryABI = parsed
	BatchCommittedTopic = RegistryABI.Events["BatchCommitted"].ID
}
