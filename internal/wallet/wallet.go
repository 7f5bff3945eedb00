// Package wallet 负责智能体钱包信息的展示：地址截断、网络标识以及可选的链上余额。
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/Zacy-Sokach/AgentChat/internal/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// Info 头部展示用的钱包信息
type Info struct {
	Address   string
	NetworkID string
}

// NewInfo 校验地址并转换为校验和格式。地址为空时返回空 Info。
func NewInfo(address, networkID string) (Info, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Info{NetworkID: networkID}, nil
	}
	if !common.IsHexAddress(address) {
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return Info{
		Address:   common.HexToAddress(address).Hex(),
		NetworkID: networkID,
	}, nil
}

// Short 地址的截断形式，保留前 5 位和后 5 位
func (i Info) Short() string {
	return Truncate(i.Address)
}

// Truncate 把地址截断为 "0x123...cdef0" 的形式，过短的地址原样返回
func Truncate(address string) string {
	const keep = 5
	if len(address) <= keep*2+3 {
		return address
	}
	return address[:keep] + "..." + address[len(address)-keep:]
}

// BalanceBackend 余额查询所需的最小接口，*ethclient.Client 满足此接口
type BalanceBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// BalanceReader 查询智能体钱包余额
type BalanceReader struct {
	backend BalanceBackend
	address common.Address
	retry   *utils.RetryConfig

	mu     sync.Mutex
	closer func()
}

// NewBalanceReader 使用给定后端构造余额查询器
func NewBalanceReader(backend BalanceBackend, info Info) (*BalanceReader, error) {
	if backend == nil {
		return nil, errors.New("balance backend is nil")
	}
	if info.Address == "" {
		return nil, ErrInvalidAddress
	}
	return &BalanceReader{
		backend: backend,
		address: common.HexToAddress(info.Address),
		retry:   utils.DefaultRetryConfig(),
	}, nil
}

// Dial 连接 RPC 节点
func Dial(ctx context.Context, rpcURL string, info Info) (*BalanceReader, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is empty")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	r, err := NewBalanceReader(client, info)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closer = client.Close
	return r, nil
}

// Balance 返回最新区块上的余额，单位为 ETH。查询是只读的，临时错误会按退避策略重试。
func (r *BalanceReader) Balance(ctx context.Context) (string, error) {
	var wei *big.Int
	err := utils.Retry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		wei, err = r.backend.BalanceAt(ctx, r.address, nil)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("query balance: %w", err)
	}
	return FormatEther(wei), nil
}

func (r *BalanceReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer != nil {
		r.closer()
		r.closer = nil
	}
}

// FormatEther 把 wei 转换为保留 4 位小数的 ETH 字符串
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0000 ETH"
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt64(params.Ether))
	return f.Text('f', 4) + " ETH"
}
