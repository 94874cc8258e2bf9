package db

import (
	"errors"
	"fmt"

	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"google.golang.org/protobuf/encoding/protowire"
)

// 区块索引记录的 protobuf 字段号（新增字段只能往后加）
const (
	fieldHeight            protowire.Number = 1
	fieldTime              protowire.Number = 2
	fieldHash              protowire.Number = 3
	fieldPrevHash          protowire.Number = 4
	fieldBits              protowire.Number = 5
	fieldStakeModifier     protowire.Number = 6
	fieldGeneratedModifier protowire.Number = 7
	fieldProofOfStakeHash  protowire.Number = 8
	fieldModifierChecksum  protowire.Number = 9
	fieldFlags             protowire.Number = 10
)

var errMalformedRecord = errors.New("malformed block index record")

// encodeBlockRef 按 protobuf 线格式编码
func encodeBlockRef(ref *types.BlockRef) []byte {
	b := make([]byte, 0, 128)
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(ref.Height)))
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(ref.Time))
	b = protowire.AppendTag(b, fieldHash, protowire.BytesType)
	b = protowire.AppendBytes(b, ref.Hash[:])
	b = protowire.AppendTag(b, fieldPrevHash, protowire.BytesType)
	b = protowire.AppendBytes(b, ref.PrevHash[:])
	b = protowire.AppendTag(b, fieldBits, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, ref.Bits)
	b = protowire.AppendTag(b, fieldStakeModifier, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, ref.StakeModifier)
	b = protowire.AppendTag(b, fieldGeneratedModifier, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(ref.GeneratedModifier))
	b = protowire.AppendTag(b, fieldProofOfStakeHash, protowire.BytesType)
	b = protowire.AppendBytes(b, ref.ProofOfStakeHash[:])
	b = protowire.AppendTag(b, fieldModifierChecksum, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, ref.StakeModifierChecksum)
	b = protowire.AppendTag(b, fieldFlags, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ref.Flags))
	return b
}

// decodeBlockRef 解码；未知字段跳过
func decodeBlockRef(b []byte) (*types.BlockRef, error) {
	ref := &types.BlockRef{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldHeight && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			ref.Height = int32(protowire.DecodeZigZag(v))
		case num == fieldTime && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			ref.Time = protowire.DecodeZigZag(v)
		case num == fieldGeneratedModifier && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			ref.GeneratedModifier = protowire.DecodeBool(v)
		case num == fieldFlags && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			ref.Flags = uint32(v)
		case num == fieldBits && typ == protowire.Fixed32Type:
			ref.Bits, n = protowire.ConsumeFixed32(b)
		case num == fieldModifierChecksum && typ == protowire.Fixed32Type:
			ref.StakeModifierChecksum, n = protowire.ConsumeFixed32(b)
		case num == fieldStakeModifier && typ == protowire.Fixed64Type:
			ref.StakeModifier, n = protowire.ConsumeFixed64(b)
		case typ == protowire.BytesType && (num == fieldHash || num == fieldPrevHash || num == fieldProofOfStakeHash):
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				if len(v) != chainhash.HashSize {
					return nil, fmt.Errorf("%w: field %d has %d bytes", errMalformedRecord, num, len(v))
				}
				switch num {
				case fieldHash:
					copy(ref.Hash[:], v)
				case fieldPrevHash:
					copy(ref.PrevHash[:], v)
				default:
					copy(ref.ProofOfStakeHash[:], v)
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", errMalformedRecord, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return ref, nil
}
