package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"casperEvents/internal/ces"
	"casperEvents/internal/errs"
)

// Protocol names accepted by ProtocolByName.
const (
	ProtocolV1 = "v1"
	ProtocolV2 = "v2"
)

// Protocol adapts the RPC shapes of one node generation.
type Protocol interface {
	Name() string
	NamedKeys(ctx context.Context, c *Client, contract common.Hash) (map[string]string, error)
	ExecutionEffects(ctx context.Context, c *Client, executionHash common.Hash) ([]ces.Write, error)
}

// ProtocolByName returns the adapter for name; empty selects v1.
func ProtocolByName(name string) (Protocol, error) {
	switch name {
	case "", ProtocolV1:
		return protocolV1{}, nil
	case ProtocolV2:
		return protocolV2{}, nil
	default:
		return nil, fmt.Errorf("unknown node protocol %q (want %s or %s)", name, ProtocolV1, ProtocolV2)
	}
}

// protocolV1 speaks to 1.x nodes: contracts live under hash keys and executions are deploys.
type protocolV1 struct{}

func (protocolV1) Name() string { return ProtocolV1 }

func (protocolV1) NamedKeys(ctx context.Context, c *Client, contract common.Hash) (map[string]string, error) {
	stored, err := c.queryGlobalState(ctx, "hash-"+hex.EncodeToString(contract[:]))
	if err != nil {
		return nil, err
	}
	if stored.Contract == nil {
		return nil, errs.Unexpected("stored value under hash-%x is not a contract", contract[:])
	}
	return namedKeyMap(stored.Contract.NamedKeys), nil
}

type transformV1 struct {
	Key       string          `json:"key"`
	Transform json.RawMessage `json:"transform"`
}

type executionResultV1 struct {
	BlockHash string `json:"block_hash"`
	Result    struct {
		Success *struct {
			Effect struct {
				Transforms []transformV1 `json:"transforms"`
			} `json:"effect"`
		} `json:"Success"`
		Failure *struct {
			ErrorMessage string `json:"error_message"`
		} `json:"Failure"`
	} `json:"result"`
}

func (protocolV1) ExecutionEffects(ctx context.Context, c *Client, executionHash common.Hash) ([]ces.Write, error) {
	params := map[string]interface{}{"deploy_hash": hex.EncodeToString(executionHash[:])}
	var out struct {
		ExecutionResults []executionResultV1 `json:"execution_results"`
	}
	if err := c.call(ctx, "info_get_deploy", params, &out); err != nil {
		return nil, err
	}
	if len(out.ExecutionResults) == 0 {
		return nil, &errs.NotFoundError{What: fmt.Sprintf("execution results of deploy %x", executionHash[:])}
	}
	result := out.ExecutionResults[0].Result
	if result.Success == nil {
		if result.Failure != nil {
			c.logger.Info("deploy failed, no events committed",
				zap.String("deploy", hex.EncodeToString(executionHash[:])),
				zap.String("error", result.Failure.ErrorMessage))
		}
		return nil, nil
	}

	var writes []ces.Write
	for _, t := range result.Success.Effect.Transforms {
		variant, body, ok := variantOf(t.Transform)
		if !ok || variant != "WriteCLValue" {
			continue
		}
		var v clValue
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, &errs.UnexpectedError{Context: "transform of " + t.Key, Err: err}
		}
		stored, err := v.stored()
		if err != nil {
			return nil, err
		}
		writes = append(writes, ces.Write{Key: t.Key, Value: stored})
	}
	return writes, nil
}

// protocolV2 speaks to 2.x nodes: contracts are addressable entities and executions
// are transactions.
type protocolV2 struct{}

func (protocolV2) Name() string { return ProtocolV2 }

func (protocolV2) NamedKeys(ctx context.Context, c *Client, contract common.Hash) (map[string]string, error) {
	params := map[string]interface{}{
		"entity_identifier": map[string]string{
			"EntityAddr": "entity-contract-" + hex.EncodeToString(contract[:]),
		},
	}
	var out struct {
		Entity struct {
			AddressableEntity *struct {
				NamedKeys []namedKey `json:"named_keys"`
			} `json:"AddressableEntity"`
		} `json:"entity"`
	}
	if err := c.call(ctx, "state_get_entity", params, &out); err != nil {
		return nil, err
	}
	if out.Entity.AddressableEntity == nil {
		return nil, errs.Unexpected("entity-contract-%x is not an addressable entity", contract[:])
	}
	return namedKeyMap(out.Entity.AddressableEntity.NamedKeys), nil
}

type effectV2 struct {
	Key  string          `json:"key"`
	Kind json.RawMessage `json:"kind"`
}

type transactionV2 struct {
	ExecutionInfo *struct {
		BlockHeight     uint64 `json:"block_height"`
		ExecutionResult struct {
			Version2 *struct {
				ErrorMessage *string    `json:"error_message"`
				Effects      []effectV2 `json:"effects"`
			} `json:"Version2"`
		} `json:"execution_result"`
	} `json:"execution_info"`
}

func (protocolV2) ExecutionEffects(ctx context.Context, c *Client, executionHash common.Hash) ([]ces.Write, error) {
	hashHex := hex.EncodeToString(executionHash[:])
	var out transactionV2
	err := c.call(ctx, "info_get_transaction", map[string]interface{}{
		"transaction_hash": map[string]string{"Version1": hashHex},
	}, &out)
	if errs.IsNotFound(err) {
		// legacy deploys keep their own hash namespace
		out = transactionV2{}
		err = c.call(ctx, "info_get_transaction", map[string]interface{}{
			"transaction_hash": map[string]string{"Deploy": hashHex},
		}, &out)
	}
	if err != nil {
		return nil, err
	}
	if out.ExecutionInfo == nil || out.ExecutionInfo.ExecutionResult.Version2 == nil {
		return nil, &errs.NotFoundError{What: "execution result of transaction " + hashHex}
	}
	result := out.ExecutionInfo.ExecutionResult.Version2
	if result.ErrorMessage != nil {
		c.logger.Info("transaction failed, no events committed",
			zap.String("transaction", hashHex), zap.String("error", *result.ErrorMessage))
		return nil, nil
	}

	var writes []ces.Write
	for _, e := range result.Effects {
		variant, body, ok := variantOf(e.Kind)
		if !ok || variant != "Write" {
			continue
		}
		var sv storedValue
		if err := json.Unmarshal(body, &sv); err != nil {
			return nil, &errs.UnexpectedError{Context: "effect of " + e.Key, Err: err}
		}
		if sv.CLValue == nil {
			continue
		}
		stored, err := sv.CLValue.stored()
		if err != nil {
			return nil, err
		}
		writes = append(writes, ces.Write{Key: e.Key, Value: stored})
	}
	return writes, nil
}

// variantOf splits a single-variant JSON object {"Name": body}. Unit variants are
// rendered as bare strings and report ok=false.
func variantOf(raw json.RawMessage) (string, json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return "", nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return "", nil, false
	}
	for name, body := range obj {
		return name, body, true
	}
	return "", nil, false
}
