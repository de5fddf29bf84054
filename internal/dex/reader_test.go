package dex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/tickmath"
)

type fakeCaller struct {
	responses map[common.Address]map[string][]byte
	calls     int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[common.Address]map[string][]byte)}
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][string(parsed.Methods[method].ID)] = out
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	resp, ok := f.responses[*msg.To][string(msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

var (
	testPool  = common.HexToAddress("0xd0b53D9277642d899DF5C87A3966A349A798F224")
	testWETH  = common.HexToAddress("0x4200000000000000000000000000000000000006")
	testUSDC  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testOwner = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func seedPool(t *testing.T, f *fakeCaller, sqrtPrice *big.Int, tick int64) {
	t.Helper()
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	f.set(t, testPool, poolABI, "token0", testWETH)
	f.set(t, testPool, poolABI, "token1", testUSDC)
	f.set(t, testPool, poolABI, "fee", big.NewInt(500))
	f.set(t, testPool, poolABI, "tickSpacing", big.NewInt(10))
	f.set(t, testPool, poolABI, "liquidity", big.NewInt(1_000_000))
	f.set(t, testPool, poolABI, "slot0", sqrtPrice, big.NewInt(tick), uint16(1), uint16(1), uint16(1), uint8(0), true)
	f.set(t, testWETH, erc20, "decimals", uint8(18))
	f.set(t, testWETH, erc20, "symbol", "WETH")
	f.set(t, testWETH, erc20, "name", "Wrapped Ether")
	f.set(t, testUSDC, erc20, "decimals", uint8(6))
	f.set(t, testUSDC, erc20, "symbol", "USDC")
	f.set(t, testUSDC, erc20, "name", "USD Coin")
}

func TestPoolReaderSnapshot(t *testing.T) {
	f := newFakeCaller()
	raw := tickmath.RawPrice(3000, 18, 6)
	seedPool(t, f, tickmath.PriceToSqrtPriceX96(raw), -195_000)

	reader := NewPoolReader(f, 8453, nil)
	snap, err := reader.Snapshot(context.Background(), testPool.Hex())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.FeeTier != 500 || snap.TickSpacing != 10 {
		t.Fatalf("fee/spacing mismatch: %+v", snap)
	}
	if snap.Decimals0 != 18 || snap.Decimals1 != 6 || snap.Symbol0 != "WETH" || snap.Symbol1 != "USDC" {
		t.Fatalf("token meta mismatch: %+v", snap)
	}
	if snap.CurrentTick != -195_000 {
		t.Fatalf("tick mismatch: %d", snap.CurrentTick)
	}
	if math.Abs(snap.CurrentPrice-3000)/3000 > 1e-6 {
		t.Fatalf("price mismatch: %v", snap.CurrentPrice)
	}
	if snap.ChainID != 8453 {
		t.Fatalf("chain id mismatch: %d", snap.ChainID)
	}

	calls := f.calls
	if _, err := reader.Meta(context.Background(), testPool.Hex()); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if f.calls != calls {
		t.Fatalf("expected cached metadata, made %d extra calls", f.calls-calls)
	}
}

func TestPoolReaderCurrentTick(t *testing.T) {
	f := newFakeCaller()
	seedPool(t, f, new(big.Int).Lsh(big.NewInt(1), 96), 120)

	reader := NewPoolReader(f, 8453, nil)
	tick, err := reader.CurrentTick(context.Background(), testPool.Hex())
	if err != nil {
		t.Fatalf("current tick: %v", err)
	}
	if tick != 120 {
		t.Fatalf("expected 120, got %d", tick)
	}

	_, err = reader.CurrentTick(context.Background(), testOwner.Hex())
	var unavailable *model.ChainUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ChainUnavailableError, got %v", err)
	}

	_, err = reader.CurrentTick(context.Background(), "not-an-address")
	var invalid *model.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestPoolReaderTokenFallsBackToBytes32Symbol(t *testing.T) {
	f := newFakeCaller()
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("bytes32 abi: %v", err)
	}
	mkr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	var symbol, name [32]byte
	copy(symbol[:], "MKR")
	copy(name[:], "Maker")
	f.set(t, mkr, erc20, "decimals", uint8(18))
	f.set(t, mkr, bytes32ABI, "symbol", symbol)
	f.set(t, mkr, bytes32ABI, "name", name)

	reader := NewPoolReader(f, 8453, nil)
	meta, err := reader.Token(context.Background(), mkr)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if meta.Symbol != "MKR" || meta.Name != "Maker" || meta.Decimals != 18 {
		t.Fatalf("token meta mismatch: %+v", meta)
	}

	calls := f.calls
	if _, err := reader.Token(context.Background(), mkr); err != nil {
		t.Fatalf("cached token: %v", err)
	}
	if f.calls != calls {
		t.Fatalf("expected cached token, made %d extra calls", f.calls-calls)
	}
}

func TestPoolReaderRejectsUninitializedPool(t *testing.T) {
	f := newFakeCaller()
	seedPool(t, f, big.NewInt(0), 0)

	reader := NewPoolReader(f, 8453, nil)
	_, err := reader.CurrentTick(context.Background(), testPool.Hex())
	var unavailable *model.ChainUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ChainUnavailableError, got %v", err)
	}
}

func TestFetchPosition(t *testing.T) {
	f := newFakeCaller()
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	f.set(t, BasePositionManager, managerABI, "positions",
		big.NewInt(0),
		common.Address{},
		testWETH,
		testUSDC,
		big.NewInt(500),
		big.NewInt(-196_000),
		big.NewInt(-194_000),
		big.NewInt(123456),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(7),
		big.NewInt(8),
	)

	pos, err := FetchPosition(context.Background(), f, BasePositionManager, big.NewInt(42))
	if err != nil {
		t.Fatalf("fetch position: %v", err)
	}
	if pos.Token0 != testWETH || pos.Token1 != testUSDC || pos.Fee != 500 {
		t.Fatalf("identity mismatch: %+v", pos)
	}
	if pos.TickLower != -196_000 || pos.TickUpper != -194_000 {
		t.Fatalf("ticks mismatch: %+v", pos)
	}
	if pos.Liquidity.Int64() != 123456 || pos.TokensOwed0.Int64() != 7 || pos.TokensOwed1.Int64() != 8 {
		t.Fatalf("amounts mismatch: %+v", pos)
	}
}

func TestERC20Views(t *testing.T) {
	f := newFakeCaller()
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	f.set(t, testUSDC, erc20, "balanceOf", big.NewInt(5_000_000))
	f.set(t, testUSDC, erc20, "allowance", big.NewInt(0))

	bal, err := BalanceOf(context.Background(), f, testUSDC, testOwner)
	if err != nil || bal.Int64() != 5_000_000 {
		t.Fatalf("balance mismatch: %v %v", bal, err)
	}
	allowance, err := Allowance(context.Background(), f, testUSDC, testOwner, BaseSwapRouter)
	if err != nil || allowance.Sign() != 0 {
		t.Fatalf("allowance mismatch: %v %v", allowance, err)
	}
}
