package ethtest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/0xsequence/feeprobe/ethrpc/jsonrpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// FakeFork is an in-process stand-in for an anvil fork. It serves the
// JSON-RPC subset the prober uses over httptest, with one UniswapV2 router,
// factory and WETH, and any number of configurable ERC20 tokens.
type FakeFork struct {
	mu     sync.Mutex
	opts   FakeForkOptions
	server *httptest.Server

	state        *forkState
	block        uint64
	automine     bool
	interval     uint64
	impersonated map[common.Address]bool
	nonces       map[common.Address]uint64
	pending      []*pendingTxn
	receipts     map[common.Hash]*types.Receipt
	failures     map[string]jsonrpc.Error

	initial   *forkState
	snapshots []forkSnapshot
	resets    []ForkReset

	requests   []string
	executions []Execution
}

// ForkReset records one anvil_reset request.
type ForkReset struct {
	JSONRPCURL  string
	BlockNumber uint64
}

// forkSnapshot is chain state as of evm_snapshot. Impersonation is not part
// of it, as on anvil.
type forkSnapshot struct {
	id       uint64
	state    *forkState
	block    uint64
	nonces   map[common.Address]uint64
	pending  []*pendingTxn
	receipts map[common.Hash]*types.Receipt
}

type FakeForkOptions struct {
	ChainID     uint64
	BlockNumber uint64

	// ManualMining starts the fork with automine off, like anvil --no-mining.
	ManualMining bool

	GasPrice    *big.Int
	GasEstimate uint64

	Router  common.Address
	Factory common.Address
	WETH    common.Address

	Tokens   []TokenConfig
	Balances map[common.Address]*big.Int
}

// Execution records one call, estimate or mined transaction run by the fake.
type Execution struct {
	RPC      string
	From     common.Address
	To       common.Address
	Method   string
	Args     []interface{}
	Value    *big.Int
	Reverted bool
	Reason   string
}

type pendingTxn struct {
	hash     common.Hash
	msg      *message
	gasPrice *big.Int
}

type forkState struct {
	balances map[common.Address]*big.Int
	tokens   map[common.Address]*tokenState
	pairs    map[common.Address]*pairState
}

func (s *forkState) clone() *forkState {
	c := &forkState{
		balances: make(map[common.Address]*big.Int, len(s.balances)),
		tokens:   make(map[common.Address]*tokenState, len(s.tokens)),
		pairs:    make(map[common.Address]*pairState, len(s.pairs)),
	}
	for addr, bal := range s.balances {
		c.balances[addr] = new(big.Int).Set(bal)
	}
	for addr, tk := range s.tokens {
		c.tokens[addr] = tk.clone()
	}
	for addr, p := range s.pairs {
		c.pairs[addr] = p.clone()
	}
	return c
}

func (s *forkState) balanceOf(addr common.Address) *big.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

func (s *forkState) credit(addr common.Address, amount *big.Int) {
	s.balances[addr] = new(big.Int).Add(s.balanceOf(addr), amount)
}

func (s *forkState) debit(addr common.Address, amount *big.Int) bool {
	bal := s.balanceOf(addr)
	if bal.Cmp(amount) < 0 {
		return false
	}
	s.balances[addr] = new(big.Int).Sub(bal, amount)
	return true
}

func NewFakeFork(opts FakeForkOptions) *FakeFork {
	if opts.ChainID == 0 {
		opts.ChainID = 1
	}
	if opts.BlockNumber == 0 {
		opts.BlockNumber = 18_000_000
	}
	if opts.GasPrice == nil {
		opts.GasPrice = big.NewInt(1_000_000_000)
	}
	if opts.GasEstimate == 0 {
		opts.GasEstimate = 150_000
	}
	if opts.Router == (common.Address{}) {
		opts.Router = DefaultRouter
	}
	if opts.Factory == (common.Address{}) {
		opts.Factory = DefaultFactory
	}
	if opts.WETH == (common.Address{}) {
		opts.WETH = DefaultWETH
	}

	state := &forkState{
		balances: map[common.Address]*big.Int{},
		tokens:   map[common.Address]*tokenState{},
		pairs:    map[common.Address]*pairState{},
	}
	for addr, bal := range opts.Balances {
		state.balances[addr] = new(big.Int).Set(bal)
	}
	for _, cfg := range opts.Tokens {
		state.tokens[cfg.Address] = newTokenState(cfg)
	}

	f := &FakeFork{
		opts:         opts,
		state:        state,
		initial:      state.clone(),
		block:        opts.BlockNumber,
		automine:     !opts.ManualMining,
		impersonated: map[common.Address]bool{},
		nonces:       map[common.Address]uint64{},
		receipts:     map[common.Hash]*types.Receipt{},
		failures:     map[string]jsonrpc.Error{},
	}
	f.server = httptest.NewServer(f)
	return f
}

func (f *FakeFork) URL() string {
	return f.server.URL
}

func (f *FakeFork) Close() {
	f.server.Close()
}

// FailMethod makes every subsequent request for method fail with the given
// node error until ClearFailures is called.
func (f *FakeFork) FailMethod(method string, code int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = jsonrpc.Error{Code: code, Message: message}
}

func (f *FakeFork) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = map[string]jsonrpc.Error{}
}

// Requests returns the JSON-RPC method names received, in order.
func (f *FakeFork) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeFork) Executions() []Execution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Execution(nil), f.executions...)
}

// ExecutionsOf returns the executions of a contract method for one RPC
// (eth_call, eth_estimateGas or eth_sendTransaction).
func (f *FakeFork) ExecutionsOf(rpc, method string) []Execution {
	var out []Execution
	for _, e := range f.Executions() {
		if e.RPC == rpc && e.Method == method {
			out = append(out, e)
		}
	}
	return out
}

func (f *FakeFork) BlockNumber() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block
}

func (f *FakeFork) Automine() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.automine
}

func (f *FakeFork) IntervalMining() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}

func (f *FakeFork) Impersonated(addr common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.impersonated[addr]
}

// Resets returns the anvil_reset requests received, in order.
func (f *FakeFork) Resets() []ForkReset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ForkReset(nil), f.resets...)
}

// Snapshots is the number of live evm_snapshot ids.
func (f *FakeFork) Snapshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func (f *FakeFork) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *FakeFork) NativeBalance(addr common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.state.balanceOf(addr))
}

func (f *FakeFork) TokenBalance(token, addr common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, ok := f.state.tokens[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(tk.balanceOf(addr))
}

func (f *FakeFork) TradingEnabled(token common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, ok := f.state.tokens[token]
	return ok && tk.tradingEnabled
}

// Reserves returns the token/WETH pool reserves, ordered as (token, WETH).
func (f *FakeFork) Reserves(token common.Address) (*big.Int, *big.Int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, ok := f.state.pairs[PairAddress(f.opts.Factory, token, f.opts.WETH)]
	if !ok {
		return nil, nil, false
	}
	reserveToken, reserveETH := pair.reservesFor(token)
	return new(big.Int).Set(reserveToken), new(big.Int).Set(reserveETH), true
}

func (f *FakeFork) timestamp() uint64 {
	return 1_700_000_000 + f.block*12
}

func (f *FakeFork) isContract(addr common.Address) bool {
	if addr == f.opts.Router || addr == f.opts.Factory || addr == f.opts.WETH {
		return true
	}
	if _, ok := f.state.tokens[addr]; ok {
		return true
	}
	_, ok := f.state.pairs[addr]
	return ok
}

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (f *FakeFork) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body = bytes.TrimSpace(body)
	isBatch := len(body) > 0 && body[0] == '['

	var reqs []rpcRequest
	if isBatch {
		err = json.Unmarshal(body, &reqs)
	} else {
		var req rpcRequest
		err = json.Unmarshal(body, &req)
		reqs = []rpcRequest{req}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resps := make([]jsonrpc.Message, len(reqs))
	f.mu.Lock()
	for i, req := range reqs {
		resps[i] = f.handle(req)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if isBatch {
		_ = json.NewEncoder(w).Encode(resps)
	} else {
		_ = json.NewEncoder(w).Encode(resps[0])
	}
}

func (f *FakeFork) handle(req rpcRequest) jsonrpc.Message {
	f.requests = append(f.requests, req.Method)
	resp := jsonrpc.Message{Version: "2.0", ID: req.ID}

	if e, ok := f.failures[req.Method]; ok {
		resp.Error = &e
		return resp
	}

	result, rpcErr := f.dispatch(req.Method, req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = &jsonrpc.Error{Code: -32603, Message: err.Error()}
		return resp
	}
	resp.Result = raw
	return resp
}

type callArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Nonce    *hexutil.Uint64 `json:"nonce"`
	Data     hexutil.Bytes   `json:"data"`
	Input    hexutil.Bytes   `json:"input"`
}

func (a callArgs) message() *message {
	msg := &message{value: new(big.Int)}
	if a.From != nil {
		msg.from = *a.From
	}
	if a.To != nil {
		msg.to = *a.To
	}
	if a.Value != nil {
		msg.value = new(big.Int).Set((*big.Int)(a.Value))
	}
	msg.data = a.Data
	if len(msg.data) == 0 {
		msg.data = a.Input
	}
	return msg
}

func param(params []json.RawMessage, i int, v interface{}) *jsonrpc.Error {
	if i >= len(params) {
		return &jsonrpc.Error{Code: -32602, Message: fmt.Sprintf("missing param %d", i)}
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return &jsonrpc.Error{Code: -32602, Message: fmt.Sprintf("invalid param %d: %v", i, err)}
	}
	return nil
}

func (f *FakeFork) dispatch(method string, params []json.RawMessage) (interface{}, *jsonrpc.Error) {
	switch method {
	case "eth_chainId":
		return hexutil.Uint64(f.opts.ChainID), nil

	case "eth_blockNumber":
		return hexutil.Uint64(f.block), nil

	case "eth_getBalance":
		var addr common.Address
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		return (*hexutil.Big)(new(big.Int).Set(f.state.balanceOf(addr))), nil

	case "eth_getCode":
		var addr common.Address
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		if f.isContract(addr) {
			return hexutil.Bytes{0x60, 0x80, 0x60, 0x40}, nil
		}
		return hexutil.Bytes{}, nil

	case "eth_getTransactionCount":
		var addr common.Address
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		return hexutil.Uint64(f.nonces[addr]), nil

	case "eth_gasPrice":
		return (*hexutil.Big)(new(big.Int).Set(f.opts.GasPrice)), nil

	case "eth_call", "eth_estimateGas":
		var args callArgs
		if err := param(params, 0, &args); err != nil {
			return nil, err
		}
		msg := args.message()
		ret, rev, fault := f.execute(f.state.clone(), msg)
		f.record(method, msg, rev, fault)
		if fault != nil {
			return nil, fault
		}
		if rev != nil {
			return nil, rev.rpcError()
		}
		if method == "eth_estimateGas" {
			return hexutil.Uint64(f.opts.GasEstimate), nil
		}
		return hexutil.Bytes(ret), nil

	case "eth_sendTransaction":
		var args callArgs
		if err := param(params, 0, &args); err != nil {
			return nil, err
		}
		return f.sendTransaction(args)

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := param(params, 0, &hash); err != nil {
			return nil, err
		}
		// Interval mining is emulated by sealing pending transactions when
		// someone waits on them.
		if f.interval > 0 && len(f.pending) > 0 {
			f.mine()
		}
		if r, ok := f.receipts[hash]; ok {
			return r, nil
		}
		return nil, nil

	case "anvil_impersonateAccount":
		var addr common.Address
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		f.impersonated[addr] = true
		return nil, nil

	case "anvil_stopImpersonatingAccount":
		var addr common.Address
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		delete(f.impersonated, addr)
		return nil, nil

	case "anvil_setBalance":
		var addr common.Address
		var bal hexutil.Big
		if err := param(params, 0, &addr); err != nil {
			return nil, err
		}
		if err := param(params, 1, &bal); err != nil {
			return nil, err
		}
		f.state.balances[addr] = new(big.Int).Set((*big.Int)(&bal))
		return nil, nil

	case "evm_mine":
		f.mine()
		return "0x0", nil

	case "evm_setAutomine":
		var enabled bool
		if err := param(params, 0, &enabled); err != nil {
			return nil, err
		}
		f.automine = enabled
		if enabled && len(f.pending) > 0 {
			f.mine()
		}
		return nil, nil

	case "anvil_getAutomine":
		return f.automine, nil

	case "evm_snapshot":
		return hexutil.Uint64(f.snapshot()), nil

	case "evm_revert":
		var id hexutil.Uint64
		if err := param(params, 0, &id); err != nil {
			return nil, err
		}
		return f.revert(uint64(id)), nil

	case "anvil_reset":
		var req struct {
			Forking *struct {
				JSONRPCURL  string `json:"jsonRpcUrl"`
				BlockNumber uint64 `json:"blockNumber"`
			} `json:"forking"`
		}
		if len(params) > 0 {
			if err := param(params, 0, &req); err != nil {
				return nil, err
			}
		}
		reset := ForkReset{BlockNumber: f.opts.BlockNumber}
		if req.Forking != nil {
			reset.JSONRPCURL = req.Forking.JSONRPCURL
			if req.Forking.BlockNumber > 0 {
				reset.BlockNumber = req.Forking.BlockNumber
			}
		}
		f.resets = append(f.resets, reset)
		f.state = f.initial.clone()
		f.block = reset.BlockNumber
		f.nonces = map[common.Address]uint64{}
		f.pending = nil
		f.receipts = map[common.Hash]*types.Receipt{}
		f.snapshots = nil
		return nil, nil

	case "evm_setIntervalMining":
		var seconds uint64
		if err := param(params, 0, &seconds); err != nil {
			return nil, err
		}
		f.interval = seconds
		if seconds > 0 {
			f.automine = false
		}
		return nil, nil
	}

	return nil, &jsonrpc.Error{Code: -32601, Message: fmt.Sprintf("Method not found: %s", method)}
}

func (f *FakeFork) sendTransaction(args callArgs) (interface{}, *jsonrpc.Error) {
	if args.From == nil {
		return nil, &jsonrpc.Error{Code: -32602, Message: "missing from"}
	}
	if args.To == nil {
		return nil, &jsonrpc.Error{Code: -32602, Message: "contract creation is not supported"}
	}
	from := *args.From
	if !f.impersonated[from] {
		return nil, &jsonrpc.Error{Code: -32000, Message: "No Signer available"}
	}

	nonce := f.nonces[from]
	if args.Nonce != nil && uint64(*args.Nonce) != nonce {
		if uint64(*args.Nonce) < nonce {
			return nil, &jsonrpc.Error{Code: -32003, Message: "nonce too low"}
		}
		return nil, &jsonrpc.Error{Code: -32003, Message: "nonce too high"}
	}
	f.nonces[from] = nonce + 1

	msg := args.message()
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	hash := crypto.Keccak256Hash(from.Bytes(), nonceBytes[:], msg.to.Bytes(), msg.data)

	gasPrice := f.opts.GasPrice
	if args.GasPrice != nil {
		gasPrice = (*big.Int)(args.GasPrice)
	}
	f.pending = append(f.pending, &pendingTxn{hash: hash, msg: msg, gasPrice: gasPrice})
	if f.automine {
		f.mine()
	}
	return hash, nil
}

func (f *FakeFork) snapshot() uint64 {
	var id uint64
	if n := len(f.snapshots); n > 0 {
		id = f.snapshots[n-1].id + 1
	}
	snap := forkSnapshot{
		id:       id,
		state:    f.state.clone(),
		block:    f.block,
		nonces:   make(map[common.Address]uint64, len(f.nonces)),
		pending:  append([]*pendingTxn(nil), f.pending...),
		receipts: make(map[common.Hash]*types.Receipt, len(f.receipts)),
	}
	for addr, n := range f.nonces {
		snap.nonces[addr] = n
	}
	for hash, r := range f.receipts {
		snap.receipts[hash] = r
	}
	f.snapshots = append(f.snapshots, snap)
	return id
}

// revert restores snapshot id and discards it along with every later one.
func (f *FakeFork) revert(id uint64) bool {
	for i, snap := range f.snapshots {
		if snap.id != id {
			continue
		}
		f.state = snap.state
		f.block = snap.block
		f.nonces = snap.nonces
		f.pending = snap.pending
		f.receipts = snap.receipts
		f.snapshots = f.snapshots[:i]
		return true
	}
	return false
}

// mine seals one block with every pending transaction. Reverted transactions
// are included with a failed status and leave state untouched.
func (f *FakeFork) mine() {
	f.block++
	var blockNum [8]byte
	binary.BigEndian.PutUint64(blockNum[:], f.block)
	blockHash := crypto.Keccak256Hash([]byte("fakefork"), blockNum[:])

	var cumulative uint64
	for i, txn := range f.pending {
		st := f.state.clone()
		_, rev, fault := f.execute(st, txn.msg)
		f.record("eth_sendTransaction", txn.msg, rev, fault)

		status := types.ReceiptStatusFailed
		if rev == nil && fault == nil {
			f.state = st
			status = types.ReceiptStatusSuccessful
		}

		gasUsed := f.opts.GasEstimate * 2 / 3
		cumulative += gasUsed
		f.receipts[txn.hash] = &types.Receipt{
			Type:              types.LegacyTxType,
			Status:            status,
			CumulativeGasUsed: cumulative,
			Logs:              []*types.Log{},
			TxHash:            txn.hash,
			GasUsed:           gasUsed,
			EffectiveGasPrice: new(big.Int).Set(txn.gasPrice),
			BlockHash:         blockHash,
			BlockNumber:       new(big.Int).SetUint64(f.block),
			TransactionIndex:  uint(i),
		}
	}
	f.pending = nil
}

func (f *FakeFork) record(rpc string, msg *message, rev *revertError, fault *jsonrpc.Error) {
	e := Execution{
		RPC:      rpc,
		From:     msg.from,
		To:       msg.to,
		Method:   msg.method,
		Args:     msg.args,
		Value:    new(big.Int).Set(msg.value),
		Reverted: rev != nil || fault != nil,
	}
	if rev != nil {
		e.Reason = rev.reason
	}
	if fault != nil {
		e.Reason = fault.Message
	}
	f.executions = append(f.executions, e)
}

func (f *FakeFork) execute(st *forkState, msg *message) ([]byte, *revertError, *jsonrpc.Error) {
	msg.method, msg.args = "", nil
	if msg.value.Sign() > 0 && !st.debit(msg.from, msg.value) {
		return nil, nil, &jsonrpc.Error{Code: -32003, Message: "insufficient funds for transfer"}
	}

	switch {
	case msg.to == f.opts.Router:
		ret, rev := f.executeRouter(st, msg)
		return ret, rev, nil
	case msg.to == f.opts.Factory:
		if msg.value.Sign() > 0 {
			return nil, revertEmpty(), nil
		}
		ret, rev := f.executeFactory(st, msg)
		return ret, rev, nil
	}

	if tk, ok := st.tokens[msg.to]; ok {
		if msg.value.Sign() > 0 {
			return nil, revertEmpty(), nil
		}
		ret, rev := tk.execute(msg)
		return ret, rev, nil
	}
	if pair, ok := st.pairs[msg.to]; ok {
		if msg.value.Sign() > 0 {
			return nil, revertEmpty(), nil
		}
		ret, rev := f.executePair(pair, msg)
		return ret, rev, nil
	}

	// No code: a plain value transfer, and calls return nothing.
	st.credit(msg.to, msg.value)
	return nil, nil, nil
}
