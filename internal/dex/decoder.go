package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"rangeKeeper/internal/model"
)

// Decoder defines a receipt log decoder.
type Decoder interface {
	CanDecode(log *types.Log) bool
	Decode(log *types.Log, out *model.ReceiptEvents) error
}

// DecodeReceipt runs each receipt log through the first decoder that accepts
// it. Logs no decoder recognizes are skipped.
func DecodeReceipt(receipt *types.Receipt, decoders ...Decoder) (model.ReceiptEvents, error) {
	if receipt == nil {
		return model.ReceiptEvents{}, fmt.Errorf("receipt is nil")
	}
	out := model.ReceiptEvents{
		TxHash: receipt.TxHash.Hex(),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		for _, d := range decoders {
			if !d.CanDecode(log) {
				continue
			}
			if err := d.Decode(log, &out); err != nil {
				return out, fmt.Errorf("decode log %d: %w", log.Index, err)
			}
			break
		}
	}
	return out, nil
}

// ReceiptDecoders returns decoders for position manager events emitted by
// manager and for Swap events from any pool.
func ReceiptDecoders(manager common.Address) ([]Decoder, error) {
	pm, err := NewPositionManagerDecoder(manager)
	if err != nil {
		return nil, err
	}
	pool, err := NewV3PoolDecoder()
	if err != nil {
		return nil, err
	}
	return []Decoder{pm, pool}, nil
}
