package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// TxBackend is the RPC surface the Transactor needs.
type TxBackend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TransactorConfig tunes transaction submission.
type TransactorConfig struct {
	ChainID        *big.Int
	ReceiptTimeout time.Duration
	// GasMarginPct is added on top of the gas estimate.
	GasMarginPct uint64
}

// Transactor signs and submits transactions from one key. At most one
// transaction is in flight at a time: Send holds a lock until the receipt
// arrives so nonces never collide.
type Transactor struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	cfg     TransactorConfig
	logger  *zap.Logger

	mu sync.Mutex
}

// NewTransactor builds a Transactor from a hex private key.
func NewTransactor(backend TxBackend, privateKeyHex string, cfg TransactorConfig, logger *zap.Logger) (*Transactor, error) {
	if backend == nil {
		return nil, fmt.Errorf("tx backend is nil")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, model.NewConfigurationError("chain-id", "must be positive")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, model.NewConfigurationError("private-key", "invalid hex key")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 3 * time.Minute
	}
	if cfg.GasMarginPct == 0 {
		cfg.GasMarginPct = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// From returns the signing address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Send submits a call to `to` with calldata and waits for a successful receipt.
func (t *Transactor) Send(ctx context.Context, op string, to common.Address, data []byte) (*types.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.buildAndSign(ctx, to, data)
	if err != nil {
		return nil, &model.TransactionFailedError{Op: op, Err: err}
	}
	if err := t.backend.SendTransaction(ctx, tx); err != nil {
		return nil, &model.TransactionFailedError{Op: op, TxHash: tx.Hash().Hex(), Err: err}
	}
	t.logger.Info("transaction sent",
		zap.String("op", op),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas", tx.Gas()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, t.cfg.ReceiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, t.backend, tx)
	if err != nil {
		return nil, &model.TransactionFailedError{Op: op, TxHash: tx.Hash().Hex(), Err: fmt.Errorf("wait mined: %w", err)}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &model.TransactionFailedError{Op: op, TxHash: tx.Hash().Hex(), Err: errors.New("reverted")}
	}
	t.logger.Info("transaction confirmed",
		zap.String("op", op),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (t *Transactor) buildAndSign(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * t.cfg.GasMarginPct / 100

	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signed, nil
}
