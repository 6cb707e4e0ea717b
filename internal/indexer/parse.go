package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"casperEvents/internal/clvalue"
)

var contractPrefixes = []string{"entity-contract-", "contract-", "hash-"}

// ParseContractHashes converts contract identifiers into hashes. Each input may be bare hex
// or carry a hash-, contract- or entity-contract- prefix. Duplicates are dropped.
func ParseContractHashes(inputs []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(inputs))
	seen := make(map[common.Hash]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		raw := input
		for _, prefix := range contractPrefixes {
			if strings.HasPrefix(raw, prefix) {
				raw = strings.TrimPrefix(raw, prefix)
				break
			}
		}
		h, err := clvalue.ParseHash(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid contract hash: %s", input)
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// ContractKey formats a contract hash the way records and checkpoints store it.
func ContractKey(contract common.Hash) string {
	return clvalue.Key{Tag: clvalue.KeyTagHash, Hash: contract}.String()
}
