package univ3

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum" // CallMsg
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/multicall"
)

const factoryABI = `[
  {"inputs":[
     {"internalType":"address","name":"tokenA","type":"address"},
     {"internalType":"address","name":"tokenB","type":"address"},
     {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

// Минимальный ABI пула: достаточно slot0 для спот-цены.
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Quoter reads Uniswap V3 spot prices straight from pool slot0. Pool
// discovery and slot0 reads for every fee tier go through the multicall
// contract, so one SpotPrice costs at most two RPC round trips plus the
// cached decimals lookups.
type Quoter struct {
	cfg  *config.Config
	log  *zap.Logger
	ec   *ethclient.Client
	mc   multicall.IClient
	fabi abi.ABI
	pabi abi.ABI
	eabi abi.ABI

	mu    sync.Mutex
	pools map[poolKey]common.Address

	decimalsCache sync.Map // common.Address -> int
}

func NewQuoter(cfg *config.Config, log *zap.Logger) (*Quoter, error) {
	ec, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	mcAddr := common.HexToAddress(cfg.DEX.Multicall)
	if mcAddr == (common.Address{}) {
		return nil, fmt.Errorf("multicall address is not configured")
	}
	mc, err := multicall.New(ec, mcAddr)
	if err != nil {
		return nil, fmt.Errorf("new multicall client: %w", err)
	}
	if common.HexToAddress(cfg.DEX.Factory) == (common.Address{}) {
		return nil, fmt.Errorf("factory address is not configured")
	}

	fabi, _ := abi.JSON(strings.NewReader(factoryABI))
	pabi, _ := abi.JSON(strings.NewReader(poolABI))
	eabi, _ := abi.JSON(strings.NewReader(erc20ABI))
	return &Quoter{
		cfg:   cfg,
		log:   log,
		ec:    ec,
		mc:    mc,
		fabi:  fabi,
		pabi:  pabi,
		eabi:  eabi,
		pools: make(map[poolKey]common.Address),
	}, nil
}

// SpotPrice returns how much quoteToken one baseToken buys at the current
// pool price, plus the fee tier of the pool that produced it. Tiers are
// tried in the configured order; the first one with a live pool and a
// readable slot0 wins.
func (q *Quoter) SpotPrice(ctx context.Context, baseToken, quoteToken common.Address) (float64, uint32, error) {
	tiers := q.cfg.DEX.FeeTiers
	if len(tiers) == 0 {
		tiers = []uint32{500, 3000}
	}

	// Пулы Uniswap V3 всегда хранят token0 < token1.
	token0, token1 := baseToken, quoteToken
	baseIsToken0 := true
	if bytes.Compare(token1.Bytes(), token0.Bytes()) < 0 {
		token0, token1 = token1, token0
		baseIsToken0 = false
	}

	pools, err := q.resolvePools(ctx, token0, token1, tiers)
	if err != nil {
		return 0, 0, err
	}

	var (
		calls     []multicall.Call
		callTiers []uint32
	)
	slot0Data, err := q.pabi.Pack("slot0")
	if err != nil {
		return 0, 0, fmt.Errorf("pack slot0: %w", err)
	}
	for _, tier := range tiers {
		pool := pools[tier]
		if pool == (common.Address{}) {
			continue
		}
		calls = append(calls, multicall.Call{Target: pool, CallData: slot0Data})
		callTiers = append(callTiers, tier)
	}
	if len(calls) == 0 {
		return 0, 0, fmt.Errorf("no pool for %s/%s on any fee tier", baseToken.Hex(), quoteToken.Hex())
	}

	results, err := q.mc.Aggregate(ctx, calls)
	if err != nil {
		return 0, 0, fmt.Errorf("multicall slot0: %w", err)
	}

	dec0, err := q.getDecimals(ctx, token0)
	if err != nil {
		return 0, 0, err
	}
	dec1, err := q.getDecimals(ctx, token1)
	if err != nil {
		return 0, 0, err
	}

	var lastErr error
	for i, res := range results {
		tier := callTiers[i]
		if !res.Success {
			lastErr = fmt.Errorf("slot0 fee %d: call reverted", tier)
			continue
		}
		outs, err := q.pabi.Methods["slot0"].Outputs.Unpack(res.Data)
		if err != nil || len(outs) == 0 {
			lastErr = fmt.Errorf("decode slot0 fee %d: %w", tier, err)
			continue
		}
		sqrtPriceX96, ok := outs[0].(*big.Int)
		if !ok || sqrtPriceX96.Sign() <= 0 {
			lastErr = fmt.Errorf("slot0 fee %d: bad sqrtPriceX96", tier)
			continue
		}

		rawP1PerP0, err := priceFromSqrt(sqrtPriceX96)
		if err != nil {
			lastErr = err
			continue
		}
		// raw amount1/amount0 -> человеческая цена token1 за 1 token0
		p1PerP0 := rawP1PerP0 * math.Pow10(dec0-dec1)

		q.log.Debug("slot0 price",
			zap.Uint32("fee", tier),
			zap.Float64("raw_p1_per_p0", rawP1PerP0),
			zap.Int("dec0", dec0), zap.Int("dec1", dec1),
			zap.Float64("p1_per_p0", p1PerP0),
		)

		if baseIsToken0 {
			return p1PerP0, tier, nil
		}
		if p1PerP0 == 0 {
			lastErr = fmt.Errorf("slot0 fee %d: zero price", tier)
			continue
		}
		return 1.0 / p1PerP0, tier, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no working fee tier")
	}
	return 0, 0, lastErr
}

// resolvePools returns the pool address per fee tier, batching every
// uncached factory.getPool lookup into one multicall.
func (q *Quoter) resolvePools(ctx context.Context, token0, token1 common.Address, tiers []uint32) (map[uint32]common.Address, error) {
	out := make(map[uint32]common.Address, len(tiers))

	q.mu.Lock()
	var missing []uint32
	for _, tier := range tiers {
		if addr, ok := q.pools[poolKey{token0, token1, tier}]; ok {
			out[tier] = addr
		} else {
			missing = append(missing, tier)
		}
	}
	q.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	factory := common.HexToAddress(q.cfg.DEX.Factory)
	var calls []multicall.Call
	for _, tier := range missing {
		// uint24 в ABI упаковывается как *big.Int
		data, err := q.fabi.Pack("getPool", token0, token1, big.NewInt(int64(tier)))
		if err != nil {
			return nil, fmt.Errorf("pack getPool fee %d: %w", tier, err)
		}
		calls = append(calls, multicall.Call{Target: factory, CallData: data})
	}

	results, err := q.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("multicall getPool: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, res := range results {
		tier := missing[i]
		if !res.Success {
			q.log.Warn("getPool call failed", zap.Uint32("fee", tier))
			continue
		}
		outs, err := q.fabi.Methods["getPool"].Outputs.Unpack(res.Data)
		if err != nil || len(outs) == 0 {
			q.log.Warn("getPool decode failed", zap.Uint32("fee", tier), zap.Error(err))
			continue
		}
		pool := outs[0].(common.Address)
		// Пустой адрес тоже кэшируем: пула на этом tier нет.
		q.pools[poolKey{token0, token1, tier}] = pool
		out[tier] = pool
		if pool != (common.Address{}) {
			q.log.Info("pool resolved", zap.Uint32("fee", tier), zap.String("pool", pool.Hex()))
		}
	}
	return out, nil
}

// EstimateGasUSD prices one swap's worth of gas in USD. EIP-1559 base fee
// plus the suggested tip when the chain exposes it, legacy gas price
// otherwise.
func (q *Quoter) EstimateGasUSD(ctx context.Context, ethUSD float64) (float64, error) {
	header, err := q.ec.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		gp, err := q.ec.SuggestGasPrice(ctx)
		if err != nil {
			return 0, fmt.Errorf("suggest gas price: %w", err)
		}
		gasWei := new(big.Int).Mul(gp, new(big.Int).SetUint64(q.cfg.Chain.GasLimitSwap))
		return weiToUSD(gasWei, ethUSD), nil
	}
	tip, err := q.ec.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(1e9) // fallback to 1 gwei
	}
	eff := new(big.Int).Add(header.BaseFee, tip)
	gasWei := new(big.Int).Mul(eff, new(big.Int).SetUint64(q.cfg.Chain.GasLimitSwap))
	return weiToUSD(gasWei, ethUSD), nil
}

func (q *Quoter) getDecimals(ctx context.Context, token common.Address) (int, error) {
	if dec, ok := q.decimalsCache.Load(token); ok {
		return dec.(int), nil
	}

	input, err := q.eabi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	res, err := q.ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	outs, err := q.eabi.Methods["decimals"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty decimals output")
		}
		return 0, fmt.Errorf("decode decimals: %w", err)
	}

	var dec int
	switch v := outs[0].(type) {
	case uint8:
		dec = int(v)
	case *big.Int:
		dec = int(v.Int64())
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", v)
	}
	q.decimalsCache.Store(token, dec)
	return dec, nil
}

// priceFromSqrt converts sqrtPriceX96 into raw amount1/amount0.
func priceFromSqrt(sqrtPriceX96 *big.Int) (float64, error) {
	if sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("bad sqrtPriceX96")
	}
	f := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	f.Mul(f, f)
	den := new(big.Float).SetPrec(256).SetFloat64(math.Exp2(192))
	f.Quo(f, den)
	out, _ := f.Float64()
	return out, nil
}

func weiToUSD(wei *big.Int, ethUSD float64) float64 {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	f.Mul(f, big.NewFloat(ethUSD))
	out, _ := f.Float64()
	return out
}
