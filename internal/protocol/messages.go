// Package protocol implements the exchange's tag-value wire format.
//
// A message is a list of semicolon-delimited tag=value pairs in the spirit of
// FIX. Tag 0 and tag 1 are always present:
//
//	ADD:    0=BITSO;1=A;2=<B|S>;3=<price>;4=<amount>;6=<MARKET>
//	DELETE: 0=BITSO;1=D;5=<uuid>
//	MODIFY: 0=BITSO;1=M;4=<amount>;5=<uuid>
//	PRINT:  0=BITSO;1=P;6=<MARKET>
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	. "matchbook/internal/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BeginString = "BITSO"
	delimiter   = ";"
	separator   = "="
)

// Tag vocabulary. maxTags sizes the sparse field array used while decoding.
const (
	tagBeginString = iota
	tagMessageType
	tagSide
	tagPrice
	tagAmount
	tagOrderID
	tagMarket
	maxTags
)

var messageTypeCodes = map[string]MessageType{
	"A": Add,
	"D": Delete,
	"M": Modify,
	"P": Print,
}

var sideCodes = map[string]Side{
	"B": Buy,
	"S": Sell,
}

// fields holds the values of a decoded message indexed by tag.
type fields struct {
	values [maxTags]string
	set    [maxTags]bool
}

func (f *fields) get(tag int) (string, error) {
	if !f.set[tag] {
		return "", fmt.Errorf("%w: missing tag %d", ErrMessageNotSupported, tag)
	}
	return f.values[tag], nil
}

// Decode parses a raw message. Every failure wraps ErrMessageNotSupported.
func Decode(raw string) (Message, error) {
	f, err := splitFields(raw)
	if err != nil {
		return Message{}, err
	}

	begin, err := f.get(tagBeginString)
	if err != nil {
		return Message{}, err
	}
	if begin != BeginString {
		return Message{}, fmt.Errorf("%w: begin string %q", ErrMessageNotSupported, begin)
	}

	code, err := f.get(tagMessageType)
	if err != nil {
		return Message{}, err
	}
	typeOf, ok := messageTypeCodes[code]
	if !ok {
		return Message{}, fmt.Errorf("%w: message type %q", ErrMessageNotSupported, code)
	}

	switch typeOf {
	case Add:
		return decodeAdd(f)
	case Delete:
		return decodeDelete(f)
	case Modify:
		return decodeModify(f)
	default:
		return decodePrint(f)
	}
}

func splitFields(raw string) (*fields, error) {
	f := &fields{}
	for _, segment := range strings.Split(raw, delimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		pair := strings.SplitN(segment, separator, 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: malformed field %q", ErrMessageNotSupported, segment)
		}
		tag, err := strconv.Atoi(pair[0])
		if err != nil || tag < 0 || tag >= maxTags {
			return nil, fmt.Errorf("%w: unknown tag %q", ErrMessageNotSupported, pair[0])
		}
		f.values[tag] = pair[1]
		f.set[tag] = true
	}
	return f, nil
}

func decodeAdd(f *fields) (Message, error) {
	m := Message{Type: Add}

	code, err := f.get(tagSide)
	if err != nil {
		return Message{}, err
	}
	side, ok := sideCodes[code]
	if !ok {
		return Message{}, fmt.Errorf("%w: order side %q", ErrMessageNotSupported, code)
	}
	m.Side = side

	if m.Price, err = decodeDecimal(f, tagPrice); err != nil {
		return Message{}, err
	}
	if m.Amount, err = decodeDecimal(f, tagAmount); err != nil {
		return Message{}, err
	}
	if m.Market, err = decodeMarket(f); err != nil {
		return Message{}, err
	}
	return m, nil
}

func decodeDelete(f *fields) (Message, error) {
	id, err := decodeOrderID(f)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: Delete, OrderID: id}, nil
}

func decodeModify(f *fields) (Message, error) {
	amount, err := decodeDecimal(f, tagAmount)
	if err != nil {
		return Message{}, err
	}
	id, err := decodeOrderID(f)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: Modify, Amount: amount, OrderID: id}, nil
}

func decodePrint(f *fields) (Message, error) {
	market, err := decodeMarket(f)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: Print, Market: market}, nil
}

func decodeDecimal(f *fields, tag int) (decimal.Decimal, error) {
	value, err := f.get(tag)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: tag %d: %v", ErrMessageNotSupported, tag, err)
	}
	return d, nil
}

func decodeOrderID(f *fields) (uuid.UUID, error) {
	value, err := f.get(tagOrderID)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: order id %q: %v", ErrMessageNotSupported, value, err)
	}
	return id, nil
}

func decodeMarket(f *fields) (Market, error) {
	value, err := f.get(tagMarket)
	if err != nil {
		return MarketNone, err
	}
	return ParseMarket(value)
}

// Encode renders a message on the wire. Missing optional values are written
// as their defaults, so encoding never fails.
func Encode(msg Message) string {
	var sb strings.Builder
	writeField(&sb, tagBeginString, BeginString)

	switch msg.Type {
	case Add:
		writeField(&sb, tagMessageType, "A")
		writeField(&sb, tagSide, encodeSide(msg.Side))
		writeField(&sb, tagPrice, msg.Price.String())
		writeField(&sb, tagAmount, msg.Amount.String())
		writeField(&sb, tagMarket, msg.Market.String())
	case Delete:
		writeField(&sb, tagMessageType, "D")
		writeField(&sb, tagOrderID, msg.OrderID.String())
	case Modify:
		writeField(&sb, tagMessageType, "M")
		writeField(&sb, tagAmount, msg.Amount.String())
		writeField(&sb, tagOrderID, msg.OrderID.String())
	case Print:
		writeField(&sb, tagMessageType, "P")
		writeField(&sb, tagMarket, msg.Market.String())
	default:
		// Tag 1 is always written; Decode rejects the unknown code.
		writeField(&sb, tagMessageType, strconv.Itoa(int(msg.Type)))
	}
	return sb.String()
}

func writeField(sb *strings.Builder, tag int, value string) {
	if sb.Len() > 0 {
		sb.WriteString(delimiter)
	}
	sb.WriteString(strconv.Itoa(tag))
	sb.WriteString(separator)
	sb.WriteString(value)
}

func encodeSide(side Side) string {
	if side == Sell {
		return "S"
	}
	return "B"
}
