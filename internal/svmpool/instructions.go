package svmpool

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/genius-solver/internal/address"
	"github.com/aman-zulfiqar/genius-solver/internal/decimals"
	"github.com/aman-zulfiqar/genius-solver/internal/models"
	"github.com/aman-zulfiqar/genius-solver/internal/solanaix"
)

var (
	discFillOrder              = [8]byte{232, 122, 115, 25, 199, 143, 136, 162}
	discFillOrderTokenTransfer = [8]byte{236, 90, 146, 166, 223, 97, 164, 222}
	discRevertOrder            = [8]byte{74, 239, 245, 154, 77, 42, 141, 19}
	discRemoveBridgeLiquidity  = [8]byte{179, 49, 66, 73, 130, 250, 201, 55}
)

func readonly(pk solana.PublicKey) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk}
}

func writable(pk solana.PublicKey) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk, IsWritable: true}
}

func signer(pk solana.PublicKey) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk, IsSigner: true, IsWritable: true}
}

func programTail() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		readonly(solana.TokenProgramID),
		readonly(solanaix.AssociatedTokenProgramID),
		readonly(solana.SystemProgramID),
	}
}

func u64Field(v, field string) (uint64, error) {
	n, err := decimals.Parse(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%s %s does not fit in u64", field, v)
	}
	return n.Uint64(), nil
}

func u32Field(v, field string) (uint32, error) {
	n, err := u64Field(v, field)
	if err != nil {
		return 0, err
	}
	if n > 0xffffffff {
		return 0, fmt.Errorf("%s %s does not fit in u32", field, v)
	}
	return uint32(n), nil
}

func bytes32Field(v, field string) ([32]byte, error) {
	b, err := address.ToBytes32(v)
	if err != nil {
		return b, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}

func bigToU64(v *big.Int, field string) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s %v does not fit in u64", field, v)
	}
	return v.Uint64(), nil
}

// FillOrderParams identifies an order being filled by an orchestrator.
// Order amounts must already be expressed in the pool stablecoin's decimals.
type FillOrderParams struct {
	Order        models.Order
	OrderHash    [32]byte
	Orchestrator solana.PublicKey
}

// FillOrderInstruction builds the fill_order instruction.
// Account order:
// 0. orchestrator (signer, writable)
// 1. receiver (writable)
// 2. orchestrator state
// 3. global state
// 4. asset
// 5. orchestrator stablecoin ATA (writable)
// 6. vault
// 7. vault stablecoin ATA (writable)
// 8. stablecoin mint
// 9. token out (writable)
// 10. order (writable)
// 11-13. token, associated token and system programs
func (p *Pool) FillOrderInstruction(params FillOrderParams) (solana.Instruction, error) {
	o := params.Order

	receiver, err := address.HexToPublicKey(o.Receiver)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	tokenOut, err := address.HexToPublicKey(o.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("tokenOut: %w", err)
	}

	orderAddr, err := p.addrs.Order(params.OrderHash)
	if err != nil {
		return nil, err
	}
	orchestratorState, err := p.addrs.OrchestratorState(params.Orchestrator)
	if err != nil {
		return nil, err
	}
	globalState, err := p.addrs.GlobalState()
	if err != nil {
		return nil, err
	}
	asset, err := p.addrs.Asset()
	if err != nil {
		return nil, err
	}
	vault, err := p.addrs.Vault()
	if err != nil {
		return nil, err
	}
	ataOrchestrator, err := p.addrs.ATA(params.Orchestrator, p.stablecoin)
	if err != nil {
		return nil, err
	}
	ataVault, err := p.addrs.ATA(vault, p.stablecoin)
	if err != nil {
		return nil, err
	}

	amountIn, err := u64Field(o.AmountIn, "amountIn")
	if err != nil {
		return nil, err
	}
	fee, err := u64Field(o.Fee, "fee")
	if err != nil {
		return nil, err
	}
	src, err := u32Field(o.SrcChainID, "srcChainId")
	if err != nil {
		return nil, err
	}
	dest, err := u32Field(o.DestChainID, "destChainId")
	if err != nil {
		return nil, err
	}
	seed, err := bytes32Field(o.Seed, "seed")
	if err != nil {
		return nil, err
	}
	trader, err := bytes32Field(o.Trader, "trader")
	if err != nil {
		return nil, err
	}
	tokenIn, err := bytes32Field(o.TokenIn, "tokenIn")
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+8+32+32+32+4+4+32+8+4+len(o.MinAmountOut))
	data = append(data, discFillOrder[:]...)
	data = binary.LittleEndian.AppendUint64(data, amountIn)
	data = append(data, seed[:]...)
	data = append(data, params.OrderHash[:]...)
	data = append(data, trader[:]...)
	data = binary.LittleEndian.AppendUint32(data, src)
	data = binary.LittleEndian.AppendUint32(data, dest)
	data = append(data, tokenIn[:]...)
	data = binary.LittleEndian.AppendUint64(data, fee)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(o.MinAmountOut)))
	data = append(data, o.MinAmountOut...)

	accounts := append([]*solana.AccountMeta{
		signer(params.Orchestrator),
		writable(receiver),
		readonly(orchestratorState),
		readonly(globalState),
		readonly(asset),
		writable(ataOrchestrator),
		readonly(vault),
		writable(ataVault),
		readonly(p.stablecoin),
		writable(tokenOut),
		writable(orderAddr),
	}, programTail()...)

	return solana.NewInstruction(p.addrs.ProgramID(), accounts, data), nil
}

// FillOrderTokenTransferInstruction builds the instruction that forwards the
// swapped token to the receiver. previousBalance is the orchestrator's
// tokenOut balance before the swap ran.
// Account order:
// 0. orchestrator (signer, writable)
// 1. receiver (writable)
// 2. global state
// 3. orchestrator state
// 4. orchestrator tokenOut ATA (writable)
// 5. receiver tokenOut ATA (writable)
// 6. token out mint
// 7-9. token, associated token and system programs
func (p *Pool) FillOrderTokenTransferInstruction(o models.Order, orchestrator solana.PublicKey, previousBalance uint64) (solana.Instruction, error) {
	receiver, err := address.HexToPublicKey(o.Receiver)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	tokenOut, err := address.HexToPublicKey(o.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("tokenOut: %w", err)
	}
	orchestratorState, err := p.addrs.OrchestratorState(orchestrator)
	if err != nil {
		return nil, err
	}
	globalState, err := p.addrs.GlobalState()
	if err != nil {
		return nil, err
	}
	receiverATA, err := p.addrs.ATA(receiver, tokenOut)
	if err != nil {
		return nil, err
	}
	orchestratorATA, err := p.addrs.ATA(orchestrator, tokenOut)
	if err != nil {
		return nil, err
	}
	minAmountOut, err := u64Field(o.MinAmountOut, "minAmountOut")
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+8+8)
	data = append(data, discFillOrderTokenTransfer[:]...)
	data = binary.LittleEndian.AppendUint64(data, minAmountOut)
	data = binary.LittleEndian.AppendUint64(data, previousBalance)

	accounts := append([]*solana.AccountMeta{
		signer(orchestrator),
		writable(receiver),
		readonly(globalState),
		readonly(orchestratorState),
		writable(orchestratorATA),
		writable(receiverATA),
		readonly(tokenOut),
	}, programTail()...)

	return solana.NewInstruction(p.addrs.ProgramID(), accounts, data), nil
}

// RevertOrderInstruction builds revert_order. Both the orchestrator and the
// trader must sign.
// Account order:
// 0. orchestrator (signer, writable)
// 1. trader (signer, writable)
// 2. orchestrator state
// 3. global state
// 4. asset (writable)
// 5. order (writable)
// 6. trader stablecoin ATA (writable)
// 7. vault
// 8. vault stablecoin ATA (writable)
// 9. stablecoin mint
// 10-12. token, associated token and system programs
func (p *Pool) RevertOrderInstruction(o models.Order, orderHash [32]byte, orchestrator solana.PublicKey) (solana.Instruction, error) {
	trader, err := address.HexToPublicKey(o.Trader)
	if err != nil {
		return nil, fmt.Errorf("trader: %w", err)
	}
	orchestratorState, err := p.addrs.OrchestratorState(orchestrator)
	if err != nil {
		return nil, err
	}
	globalState, err := p.addrs.GlobalState()
	if err != nil {
		return nil, err
	}
	asset, err := p.addrs.Asset()
	if err != nil {
		return nil, err
	}
	orderAddr, err := p.addrs.Order(orderHash)
	if err != nil {
		return nil, err
	}
	vault, err := p.addrs.Vault()
	if err != nil {
		return nil, err
	}
	ataTrader, err := p.addrs.ATA(trader, p.stablecoin)
	if err != nil {
		return nil, err
	}
	ataVault, err := p.addrs.ATA(vault, p.stablecoin)
	if err != nil {
		return nil, err
	}
	seed, err := bytes32Field(o.Seed, "seed")
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+32)
	data = append(data, discRevertOrder[:]...)
	data = append(data, seed[:]...)

	accounts := append([]*solana.AccountMeta{
		signer(orchestrator),
		signer(trader),
		readonly(orchestratorState),
		readonly(globalState),
		writable(asset),
		writable(orderAddr),
		writable(ataTrader),
		readonly(vault),
		writable(ataVault),
		readonly(p.stablecoin),
	}, programTail()...)

	return solana.NewInstruction(p.addrs.ProgramID(), accounts, data), nil
}

// RemoveBridgeLiquidityInstruction builds remove_bridge_liquidity, moving
// amount of stablecoin from the vault to the orchestrator's ATA.
// Account order:
// 0. orchestrator (signer, writable)
// 1. global state
// 2. asset
// 3. orchestrator state
// 4. orchestrator stablecoin ATA (writable)
// 5. vault
// 6. vault stablecoin ATA (writable)
// 7. stablecoin mint
// 8-10. token, associated token and system programs
func (p *Pool) RemoveBridgeLiquidityInstruction(amount uint64, orchestrator solana.PublicKey) (solana.Instruction, error) {
	orchestratorState, err := p.addrs.OrchestratorState(orchestrator)
	if err != nil {
		return nil, err
	}
	globalState, err := p.addrs.GlobalState()
	if err != nil {
		return nil, err
	}
	asset, err := p.addrs.Asset()
	if err != nil {
		return nil, err
	}
	vault, err := p.addrs.Vault()
	if err != nil {
		return nil, err
	}
	ataOrchestrator, err := p.addrs.ATA(orchestrator, p.stablecoin)
	if err != nil {
		return nil, err
	}
	ataVault, err := p.addrs.ATA(vault, p.stablecoin)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+8)
	data = append(data, discRemoveBridgeLiquidity[:]...)
	data = binary.LittleEndian.AppendUint64(data, amount)

	accounts := append([]*solana.AccountMeta{
		signer(orchestrator),
		readonly(globalState),
		readonly(asset),
		readonly(orchestratorState),
		writable(ataOrchestrator),
		readonly(vault),
		writable(ataVault),
		readonly(p.stablecoin),
	}, programTail()...)

	return solana.NewInstruction(p.addrs.ProgramID(), accounts, data), nil
}
