package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"rangeKeeper/internal/model"
)

// PositionManagerDecoder decodes IncreaseLiquidity, DecreaseLiquidity and
// Collect events of the NonfungiblePositionManager.
type PositionManagerDecoder struct {
	manager     common.Address
	managerABI  abi.ABI
	topicToName map[common.Hash]string
}

// NewPositionManagerDecoder builds a decoder that only accepts logs emitted by
// manager. A zero address accepts any emitter.
func NewPositionManagerDecoder(manager common.Address) (*PositionManagerDecoder, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[common.Hash]string, 3)
	for _, name := range []string{"IncreaseLiquidity", "DecreaseLiquidity", "Collect"} {
		topicToName[managerABI.Events[name].ID] = name
	}
	return &PositionManagerDecoder{manager: manager, managerABI: managerABI, topicToName: topicToName}, nil
}

// CanDecode checks the emitter and topic0.
func (d *PositionManagerDecoder) CanDecode(log *types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	if d.manager != (common.Address{}) && log.Address != d.manager {
		return false
	}
	_, ok := d.topicToName[log.Topics[0]]
	return ok
}

// Decode appends the decoded payload to out.
func (d *PositionManagerDecoder) Decode(log *types.Log, out *model.ReceiptEvents) error {
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	event := d.managerABI.Events[name]
	tokenID, err := d.tokenID(event, log)
	if err != nil {
		return err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 3 {
		return fmt.Errorf("unexpected %s values: %d", name, len(values))
	}

	switch name {
	case "IncreaseLiquidity", "DecreaseLiquidity":
		liquidity, err := asBigInt(values[0])
		if err != nil {
			return err
		}
		amount0, err := asBigInt(values[1])
		if err != nil {
			return err
		}
		amount1, err := asBigInt(values[2])
		if err != nil {
			return err
		}
		if name == "IncreaseLiquidity" {
			out.IncreaseLiquidity = append(out.IncreaseLiquidity, model.IncreaseLiquidityEventData{
				TokenID:   tokenID.String(),
				Liquidity: liquidity.String(),
				Amount0:   amount0.String(),
				Amount1:   amount1.String(),
			})
		} else {
			out.DecreaseLiquidity = append(out.DecreaseLiquidity, model.DecreaseLiquidityEventData{
				TokenID:   tokenID.String(),
				Liquidity: liquidity.String(),
				Amount0:   amount0.String(),
				Amount1:   amount1.String(),
			})
		}
	case "Collect":
		recipient, err := asAddress(values[0])
		if err != nil {
			return err
		}
		amount0, err := asBigInt(values[1])
		if err != nil {
			return err
		}
		amount1, err := asBigInt(values[2])
		if err != nil {
			return err
		}
		out.Collect = append(out.Collect, model.CollectEventData{
			TokenID:   tokenID.String(),
			Recipient: recipient.Hex(),
			Amount0:   amount0.String(),
			Amount1:   amount1.String(),
		})
	}
	return nil
}

func (d *PositionManagerDecoder) tokenID(event abi.Event, log *types.Log) (*big.Int, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	var indexed struct {
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if indexed.TokenId == nil {
		return nil, fmt.Errorf("missing tokenId topic")
	}
	return indexed.TokenId, nil
}
