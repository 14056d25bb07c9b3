package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Makerdao-style multicall: aggregate((address,bytes)[]) -> (uint256, bytes[]).
const multicallABI = `[
{
    "constant": false,
    "inputs": [
        {
            "components": [
                {"name": "target", "type": "address"},
                {"name": "callData", "type": "bytes"}
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "aggregate",
    "outputs": [
        {"name": "blockNumber", "type": "uint256"},
        {"name": "returnData", "type": "bytes[]"}
    ],
    "payable": false,
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

// Call is one read-only sub-call inside the batch.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Result mirrors Call order. Success only means the sub-call returned
// data; decoding that data is the caller's problem.
type Result struct {
	Success bool
	Data    []byte
}

type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	ec   *ethclient.Client
	addr common.Address
	abi  abi.ABI
}

func New(ec *ethclient.Client, contract common.Address) (IClient, error) {
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{ec: ec, addr: contract, abi: parsed}, nil
}

// Aggregate runs all calls in one eth_call against the multicall contract
// and returns per-call results in the same order.
func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	payload, err := c.abi.Pack("aggregate", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate: %w", err)
	}

	raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call aggregate: %w", err)
	}

	var decoded struct {
		BlockNumber *big.Int
		ReturnData  [][]byte
	}
	if err := c.abi.UnpackIntoInterface(&decoded, "aggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(decoded.ReturnData) != len(calls) {
		return nil, fmt.Errorf("aggregate returned %d results for %d calls", len(decoded.ReturnData), len(calls))
	}

	out := make([]Result, len(calls))
	for i, data := range decoded.ReturnData {
		out[i] = Result{Success: len(data) > 0, Data: data}
	}
	return out, nil
}
