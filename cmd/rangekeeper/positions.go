package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeKeeper/internal/config"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/optimizer"
)

func newPositionCmd() *cobra.Command {
	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Manage tracked positions",
	}
	positionCmd.PersistentFlags().String("db-driver", "", "position store driver (sqlite, postgres)")
	positionCmd.PersistentFlags().String("db", "", "position store DSN or sqlite path")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Track an existing liquidity position",
		RunE:  runPositionAdd,
	}
	addCmd.Flags().String("owner", "", "owning account address")
	addCmd.Flags().String("pool", "", "pool address")
	addCmd.Flags().Uint64("token-id", 0, "position manager NFT id")
	addCmd.Flags().Int32("tick-lower", 0, "lower tick")
	addCmd.Flags().Int32("tick-upper", 0, "upper tick")
	addCmd.Flags().String("amount0", "0", "deposited token0 amount")
	addCmd.Flags().String("amount1", "0", "deposited token1 amount")
	addCmd.Flags().Float64("capital", 0, "deposited value in USD")
	_ = addCmd.MarkFlagRequired("capital")
	addCmd.Flags().String("profile", optimizer.ProfileConcentratedFollower, "strategy profile")
	addCmd.Flags().Duration("interval", model.DefaultCheckInterval, "check interval")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked positions",
		RunE:  runPositionList,
	}
	listCmd.Flags().Bool("all", false, "include paused positions")

	pauseCmd := &cobra.Command{
		Use:   "pause ID",
		Short: "Stop monitoring a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositionSetActive(cmd, args[0], false)
		},
	}
	resumeCmd := &cobra.Command{
		Use:   "resume ID",
		Short: "Resume monitoring a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositionSetActive(cmd, args[0], true)
		},
	}

	positionCmd.AddCommand(addCmd, listCmd, pauseCmd, resumeCmd)
	return positionCmd
}

func withPositionStore(cmd *cobra.Command, fn func(ctx context.Context, s store, logger *zap.Logger) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPositions(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, s, logger)
}

func runPositionAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	owner, _ := flags.GetString("owner")
	pool, _ := flags.GetString("pool")
	tokenID, _ := flags.GetUint64("token-id")
	lower, _ := flags.GetInt32("tick-lower")
	upper, _ := flags.GetInt32("tick-upper")
	amount0Str, _ := flags.GetString("amount0")
	amount1Str, _ := flags.GetString("amount1")
	capital, _ := flags.GetFloat64("capital")
	profile, _ := flags.GetString("profile")
	interval, _ := flags.GetDuration("interval")

	addrs, err := config.ParseAddresses([]string{owner, pool})
	if err != nil {
		return err
	}
	if len(addrs) != 2 {
		return fmt.Errorf("--owner and --pool are required")
	}
	if _, err := optimizer.LookupProfile(profile); err != nil {
		return err
	}
	amount0, err := decimal.NewFromString(amount0Str)
	if err != nil {
		return model.NewInvalidInput("amount0", amount0Str, "not a decimal")
	}
	amount1, err := decimal.NewFromString(amount1Str)
	if err != nil {
		return model.NewInvalidInput("amount1", amount1Str, "not a decimal")
	}

	return withPositionStore(cmd, func(ctx context.Context, s store, logger *zap.Logger) error {
		created, err := s.CreatePosition(ctx, model.Position{
			Owner:         addrs[0].Hex(),
			TokenID:       tokenID,
			PoolAddress:   addrs[1].Hex(),
			TickLower:     lower,
			TickUpper:     upper,
			Amount0:       amount0,
			Amount1:       amount1,
			CapitalUSD:    capital,
			Profile:       profile,
			CheckInterval: interval,
		})
		if err != nil {
			return err
		}
		logger.Info("position added",
			zap.Int64("position_id", created.ID),
			zap.String("owner", created.Owner),
			zap.String("pool", created.PoolAddress),
			zap.Int32("tick_lower", created.TickLower),
			zap.Int32("tick_upper", created.TickUpper),
		)
		fmt.Fprintf(os.Stdout, "position %d added\n", created.ID)
		return nil
	})
}

func runPositionList(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	return withPositionStore(cmd, func(ctx context.Context, s store, _ *zap.Logger) error {
		positions, err := s.ListPositions(ctx, !all)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Owner", "Pool", "Token", "Ticks", "Amount0", "Amount1", "Capital", "Profile", "Active", "Last rebalance")
		for _, p := range positions {
			last := "never"
			if !p.LastRebalanceAt.IsZero() {
				last = p.LastRebalanceAt.Format(time.RFC3339)
			}
			if err := table.Append(
				strconv.FormatInt(p.ID, 10),
				shortAddr(p.Owner),
				shortAddr(p.PoolAddress),
				strconv.FormatUint(p.TokenID, 10),
				fmt.Sprintf("[%d, %d]", p.TickLower, p.TickUpper),
				p.Amount0.String(),
				p.Amount1.String(),
				fmtUSD(p.CapitalUSD),
				p.Profile,
				strconv.FormatBool(p.Active),
				last,
			); err != nil {
				return err
			}
		}
		return table.Render()
	})
}

func runPositionSetActive(cmd *cobra.Command, rawID string, active bool) error {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return model.NewInvalidInput("position id", rawID, "not an integer")
	}
	return withPositionStore(cmd, func(ctx context.Context, s store, logger *zap.Logger) error {
		if err := s.SetPositionActive(ctx, id, active); err != nil {
			return fmt.Errorf("position %d: %w", id, err)
		}
		logger.Info("position updated", zap.Int64("position_id", id), zap.Bool("active", active))
		return nil
	})
}

func shortAddr(addr string) string {
	if !common.IsHexAddress(addr) || len(addr) < 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
