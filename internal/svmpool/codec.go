package svmpool

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// OrderAccount is the decoded on-chain order record.
type OrderAccount struct {
	Seed         [32]byte
	AmountIn     uint64
	Trader       [32]byte
	Receiver     [32]byte
	SrcChainID   uint32
	DestChainID  uint32
	Reserved0    int64
	TokenIn      [32]byte
	Status       uint8
	Fee          uint64
	MinAmountOut string
	TokenOut     [32]byte
	Reserved1    uint64
}

// AssetAccount is the decoded fee-accounting record of the pool.
type AssetAccount struct {
	TotalFeeCollected     uint64
	BaseFeeCollected      uint64
	LPFeeCollected        uint64
	ProtocolFeeCollected  uint64
	InsuranceFeeCollected uint64
	UnclaimedBaseFee      uint64
	UnclaimedLPFee        uint64
	UnclaimedProtocolFee  uint64
	UnclaimedInsuranceFee uint64
}

var (
	orderDiscriminator = accountDiscriminator("Order")
	assetDiscriminator = accountDiscriminator("Asset")
)

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("account data truncated at offset %d (need %d, have %d)", r.off, n, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) skip(n int) { r.take(n) }

func (r *reader) bytes32() (out [32]byte) {
	if b := r.take(32); b != nil {
		copy(out[:], b)
	}
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) str() string {
	n := r.u32()
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = fmt.Errorf("invalid utf-8 string at offset %d", r.off-len(b))
		return ""
	}
	return string(b)
}

// DecodeOrder parses order account data.
func DecodeOrder(data []byte) (*OrderAccount, error) {
	r := &reader{data: data}
	r.skip(8)

	o := &OrderAccount{}
	o.Seed = r.bytes32()
	o.AmountIn = r.u64()
	o.Trader = r.bytes32()
	o.Receiver = r.bytes32()
	o.SrcChainID = r.u32()
	o.DestChainID = r.u32()
	o.Reserved0 = int64(r.u64())
	o.TokenIn = r.bytes32()
	o.Status = r.u8()
	o.Fee = r.u64()
	o.MinAmountOut = r.str()
	o.TokenOut = r.bytes32()
	o.Reserved1 = r.u64()

	if r.err != nil {
		return nil, fmt.Errorf("decode order: %w", r.err)
	}
	return o, nil
}

// EncodeOrder is the inverse of DecodeOrder.
func EncodeOrder(o *OrderAccount) []byte {
	buf := make([]byte, 0, 8+32+8+32+32+4+4+8+32+1+8+4+len(o.MinAmountOut)+32+8)
	buf = append(buf, orderDiscriminator[:]...)
	buf = append(buf, o.Seed[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, o.AmountIn)
	buf = append(buf, o.Trader[:]...)
	buf = append(buf, o.Receiver[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, o.SrcChainID)
	buf = binary.LittleEndian.AppendUint32(buf, o.DestChainID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(o.Reserved0))
	buf = append(buf, o.TokenIn[:]...)
	buf = append(buf, o.Status)
	buf = binary.LittleEndian.AppendUint64(buf, o.Fee)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(o.MinAmountOut)))
	buf = append(buf, o.MinAmountOut...)
	buf = append(buf, o.TokenOut[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, o.Reserved1)
	return buf
}

// DecodeAsset parses asset account data.
func DecodeAsset(data []byte) (*AssetAccount, error) {
	r := &reader{data: data}
	r.skip(8)

	a := &AssetAccount{
		TotalFeeCollected:     r.u64(),
		BaseFeeCollected:      r.u64(),
		LPFeeCollected:        r.u64(),
		ProtocolFeeCollected:  r.u64(),
		InsuranceFeeCollected: r.u64(),
		UnclaimedBaseFee:      r.u64(),
		UnclaimedLPFee:        r.u64(),
		UnclaimedProtocolFee:  r.u64(),
		UnclaimedInsuranceFee: r.u64(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode asset: %w", r.err)
	}
	return a, nil
}

// EncodeAsset is the inverse of DecodeAsset.
func EncodeAsset(a *AssetAccount) []byte {
	buf := make([]byte, 0, 8+9*8)
	buf = append(buf, assetDiscriminator[:]...)
	for _, v := range []uint64{
		a.TotalFeeCollected,
		a.BaseFeeCollected,
		a.LPFeeCollected,
		a.ProtocolFeeCollected,
		a.InsuranceFeeCollected,
		a.UnclaimedBaseFee,
		a.UnclaimedLPFee,
		a.UnclaimedProtocolFee,
		a.UnclaimedInsuranceFee,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return buf
}
