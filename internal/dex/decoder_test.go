package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeReceiptSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	receipt := buildReceipt(buildLog(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	}))

	decoders, err := ReceiptDecoders(BasePositionManager)
	if err != nil {
		t.Fatalf("decoders: %v", err)
	}
	events, err := DecodeReceipt(receipt, decoders...)
	if err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if len(events.Swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(events.Swaps))
	}

	swap := events.Swaps[0]
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch")
	}
	if events.BlockNumber != 12345 {
		t.Fatalf("block number mismatch: %d", events.BlockNumber)
	}
}

func TestDecodeReceiptPositionManagerEvents(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	tokenID := big.NewInt(424242)

	decreaseData, err := managerABI.Events["DecreaseLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack decrease: %v", err)
	}
	collectData, err := managerABI.Events["Collect"].Inputs.NonIndexed().Pack(
		recipient,
		big.NewInt(110),
		big.NewInt(220),
	)
	if err != nil {
		t.Fatalf("pack collect: %v", err)
	}
	increaseData, err := managerABI.Events["IncreaseLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack increase: %v", err)
	}

	tokenTopic := common.BigToHash(tokenID)
	receipt := buildReceipt(
		buildLog(BasePositionManager, managerABI.Events["DecreaseLiquidity"].ID, decreaseData, []common.Hash{tokenTopic}),
		buildLog(BasePositionManager, managerABI.Events["Collect"].ID, collectData, []common.Hash{tokenTopic}),
		buildLog(BasePositionManager, managerABI.Events["IncreaseLiquidity"].ID, increaseData, []common.Hash{tokenTopic}),
		// Same event from another emitter is ignored.
		buildLog(common.HexToAddress("0xdead000000000000000000000000000000000000"), managerABI.Events["Collect"].ID, collectData, []common.Hash{tokenTopic}),
	)

	decoders, err := ReceiptDecoders(BasePositionManager)
	if err != nil {
		t.Fatalf("decoders: %v", err)
	}
	events, err := DecodeReceipt(receipt, decoders...)
	if err != nil {
		t.Fatalf("decode receipt: %v", err)
	}

	if len(events.DecreaseLiquidity) != 1 || events.DecreaseLiquidity[0].Liquidity != "5000" {
		t.Fatalf("decrease mismatch: %+v", events.DecreaseLiquidity)
	}
	if len(events.Collect) != 1 {
		t.Fatalf("expected 1 collect, got %d", len(events.Collect))
	}
	collect := events.Collect[0]
	if collect.TokenID != "424242" || collect.Amount0 != "110" || collect.Amount1 != "220" {
		t.Fatalf("collect mismatch: %+v", collect)
	}
	if collect.Recipient != recipient.Hex() {
		t.Fatalf("collect recipient mismatch")
	}
	if len(events.IncreaseLiquidity) != 1 || events.IncreaseLiquidity[0].TokenID != "424242" {
		t.Fatalf("increase mismatch: %+v", events.IncreaseLiquidity)
	}
}

func TestDecodeReceiptNil(t *testing.T) {
	if _, err := DecodeReceipt(nil); err == nil {
		t.Fatalf("expected error for nil receipt")
	}
}

func buildReceipt(logs ...*types.Log) *types.Receipt {
	for i, log := range logs {
		log.Index = uint(i)
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.HexToHash("0xdef"),
		BlockNumber: big.NewInt(12345),
		Logs:        logs,
	}
}

func buildLog(address common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) *types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)
	return &types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

