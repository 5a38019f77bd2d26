package buyerinput

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/internal/pool"
)

// Protobuf field numbers of the auction service messages.
const (
	caNameField               protowire.Number = 1
	caOwnerField              protowire.Number = 2
	caUserBiddingSignalsField protowire.Number = 3
	caBiddingSignalsKeysField protowire.Number = 4
	caAdRenderIDsField        protowire.Number = 5

	pasAppInstallSignalsField protowire.Number = 1
	pasEncodingVersionField   protowire.Number = 2

	biCustomAudiencesField     protowire.Number = 1
	biProtectedAppSignalsField protowire.Number = 4

	paiGenerationIDField         protowire.Number = 1
	paiPublisherNameField        protowire.Number = 2
	paiEnableDebugReportingField protowire.Number = 3
	paiBuyerInputField           protowire.Number = 4
	paiBuyerInputEntryKeyField   protowire.Number = 1
	paiBuyerInputEntryValueField protowire.Number = 2
)

// ProtectedAuctionInput is the top-level message carried inside a frame.
type ProtectedAuctionInput struct {
	GenerationID         string
	PublisherName        string
	EnableDebugReporting bool
	// BuyerInputs maps buyer to its compressed BuyerInput.
	BuyerInputs map[string][]byte
}

// Marshal encodes ca in protobuf wire format.
func (ca *CustomAudience) Marshal() []byte {
	return ca.appendTo(nil)
}

// Size returns the encoded size of ca.
func (ca *CustomAudience) Size() int {
	return len(ca.appendTo(nil))
}

func (ca *CustomAudience) appendTo(b []byte) []byte {
	b = appendString(b, caNameField, ca.Name)
	b = appendString(b, caOwnerField, ca.Owner)
	b = appendString(b, caUserBiddingSignalsField, ca.UserBiddingSignals)
	for _, key := range ca.BiddingSignalsKeys {
		b = protowire.AppendTag(b, caBiddingSignalsKeysField, protowire.BytesType)
		b = protowire.AppendString(b, key)
	}
	for _, id := range ca.AdRenderIDs {
		b = protowire.AppendTag(b, caAdRenderIDsField, protowire.BytesType)
		b = protowire.AppendString(b, id)
	}

	return b
}

// Unmarshal decodes a CustomAudience. Buyer and Priority are left untouched.
func (ca *CustomAudience) Unmarshal(data []byte) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == caNameField && typ == protowire.BytesType:
			return consumeString(b, &ca.Name)
		case num == caOwnerField && typ == protowire.BytesType:
			return consumeString(b, &ca.Owner)
		case num == caUserBiddingSignalsField && typ == protowire.BytesType:
			return consumeString(b, &ca.UserBiddingSignals)
		case num == caBiddingSignalsKeysField && typ == protowire.BytesType:
			var s string
			n, err := consumeString(b, &s)
			ca.BiddingSignalsKeys = append(ca.BiddingSignalsKeys, s)

			return n, err
		case num == caAdRenderIDsField && typ == protowire.BytesType:
			var s string
			n, err := consumeString(b, &s)
			ca.AdRenderIDs = append(ca.AdRenderIDs, s)

			return n, err
		}

		return skipField(num, typ, b)
	})
}

func (s *EncodedSignals) appendTo(b []byte) []byte {
	if len(s.Payload) > 0 {
		b = protowire.AppendTag(b, pasAppInstallSignalsField, protowire.BytesType)
		b = protowire.AppendBytes(b, s.Payload)
	}
	if s.Version != 0 {
		b = protowire.AppendTag(b, pasEncodingVersionField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Version))
	}

	return b
}

func (s *EncodedSignals) unmarshal(data []byte) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == pasAppInstallSignalsField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			s.Payload = slices.Clone(v)

			return n, nil
		case num == pasEncodingVersionField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			s.Version = int(v)

			return n, nil
		}

		return skipField(num, typ, b)
	})
}

// Marshal encodes the buyer input in protobuf wire format.
func (b *BuyerInput) Marshal() []byte {
	out := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(out)
	scratch := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(scratch)

	for i := range b.CustomAudiences {
		scratch.B = b.CustomAudiences[i].appendTo(scratch.B[:0])
		out.B = appendMessage(out.B, biCustomAudiencesField, scratch.B)
	}
	if b.ProtectedAppSignals != nil {
		scratch.B = b.ProtectedAppSignals.appendTo(scratch.B[:0])
		out.B = appendMessage(out.B, biProtectedAppSignalsField, scratch.B)
	}

	return out.Clone()
}

// Unmarshal decodes a BuyerInput.
func (b *BuyerInput) Unmarshal(data []byte) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch {
		case num == biCustomAudiencesField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var ca CustomAudience
			if err := ca.Unmarshal(v); err != nil {
				return 0, err
			}
			b.CustomAudiences = append(b.CustomAudiences, ca)

			return n, nil
		case num == biProtectedAppSignalsField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var s EncodedSignals
			if err := s.unmarshal(v); err != nil {
				return 0, err
			}
			b.ProtectedAppSignals = &s

			return n, nil
		}

		return skipField(num, typ, buf)
	})
}

// Marshal encodes p in protobuf wire format. Buyer inputs are written in ascending buyer order
// so equal inputs produce equal bytes.
func (p *ProtectedAuctionInput) Marshal() []byte {
	bb := p.encode()
	defer pool.PutMessageBuffer(bb)

	return bb.Clone()
}

// Size returns the encoded size of p.
func (p *ProtectedAuctionInput) Size() int {
	bb := p.encode()
	defer pool.PutMessageBuffer(bb)

	return bb.Len()
}

// encode writes p into a pooled message buffer; the caller returns it with pool.PutMessageBuffer.
func (p *ProtectedAuctionInput) encode() *pool.ByteBuffer {
	bb := pool.GetMessageBuffer()
	bb.B = appendString(bb.B, paiGenerationIDField, p.GenerationID)
	bb.B = appendString(bb.B, paiPublisherNameField, p.PublisherName)
	if p.EnableDebugReporting {
		bb.B = protowire.AppendTag(bb.B, paiEnableDebugReportingField, protowire.VarintType)
		bb.B = protowire.AppendVarint(bb.B, protowire.EncodeBool(true))
	}

	buyers := make([]string, 0, len(p.BuyerInputs))
	for buyer := range p.BuyerInputs {
		buyers = append(buyers, buyer)
	}
	slices.Sort(buyers)

	for _, buyer := range buyers {
		input := p.BuyerInputs[buyer]
		entryLen := protowire.SizeTag(paiBuyerInputEntryKeyField) + protowire.SizeBytes(len(buyer)) +
			protowire.SizeTag(paiBuyerInputEntryValueField) + protowire.SizeBytes(len(input))
		bb.Grow(protowire.SizeTag(paiBuyerInputField) + protowire.SizeBytes(entryLen))

		bb.B = protowire.AppendTag(bb.B, paiBuyerInputField, protowire.BytesType)
		bb.B = protowire.AppendVarint(bb.B, uint64(entryLen))
		bb.B = protowire.AppendTag(bb.B, paiBuyerInputEntryKeyField, protowire.BytesType)
		bb.B = protowire.AppendString(bb.B, buyer)
		bb.B = protowire.AppendTag(bb.B, paiBuyerInputEntryValueField, protowire.BytesType)
		bb.B = protowire.AppendBytes(bb.B, input)
	}

	return bb
}

// Unmarshal decodes a ProtectedAuctionInput.
func (p *ProtectedAuctionInput) Unmarshal(data []byte) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == paiGenerationIDField && typ == protowire.BytesType:
			return consumeString(b, &p.GenerationID)
		case num == paiPublisherNameField && typ == protowire.BytesType:
			return consumeString(b, &p.PublisherName)
		case num == paiEnableDebugReportingField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			p.EnableDebugReporting = protowire.DecodeBool(v)

			return n, nil
		case num == paiBuyerInputField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			if err := p.unmarshalEntry(v); err != nil {
				return 0, err
			}

			return n, nil
		}

		return skipField(num, typ, b)
	})
}

func (p *ProtectedAuctionInput) unmarshalEntry(data []byte) error {
	var (
		key   string
		value []byte
	)
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == paiBuyerInputEntryKeyField && typ == protowire.BytesType:
			return consumeString(b, &key)
		case num == paiBuyerInputEntryValueField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			value = slices.Clone(v)

			return n, nil
		}

		return skipField(num, typ, b)
	})
	if err != nil {
		return err
	}

	if p.BuyerInputs == nil {
		p.BuyerInputs = make(map[string][]byte)
	}
	if value == nil {
		value = []byte{}
	}
	p.BuyerInputs[key] = value

	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, msg)
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v

	return n, nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	return n, nil
}

// consumeFields walks every field in data. fn consumes the field value that starts at b and
// returns the number of bytes read.
func consumeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %w", errs.ErrMalformedMessage, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return fmt.Errorf("%w: field %d: %w", errs.ErrMalformedMessage, num, err)
		}
		data = data[m:]
	}

	return nil
}

// messageFieldSize returns the encoded size of an embedded message field of msgLen bytes.
func messageFieldSize(num protowire.Number, msgLen int) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(msgLen)
}

// BuyerInputEntryOverhead returns the bytes a buyer_input map entry adds to a
// ProtectedAuctionInput beyond the compressed input itself, for inputs of up to maxInputLen
// bytes.
func BuyerInputEntryOverhead(buyer string, maxInputLen int) int {
	entry := protowire.SizeTag(paiBuyerInputEntryKeyField) + protowire.SizeBytes(len(buyer)) +
		protowire.SizeTag(paiBuyerInputEntryValueField) + protowire.SizeBytes(maxInputLen)

	return messageFieldSize(paiBuyerInputField, entry) - maxInputLen
}
