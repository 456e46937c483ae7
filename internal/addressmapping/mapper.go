// Package addressmapping turns a flat host address into the
// rank/bankgroup/bank/row/column address that the channel and command
// queue schedule against.
package addressmapping

import "github.com/sarchlab/dramctrl/internal/signal"

// A Mapper converts a host address into a DRAM address.
type Mapper interface {
	Map(addr uint64) signal.Address
}

// Builder constructs a bit-sliced Mapper. The field order is
// column/bank/bankgroup/rank/row from the low bits up (after the
// burst-offset bits are stripped); the row takes all remaining high bits.
// The channel count is recorded but no channel field is decoded.
type Builder struct {
	burstLength int
	busWidth    int

	numChannel   int
	numRank      int
	numBankGroup int
	numBank      int
	numRow       int
	numCol       int
}

// MakeBuilder creates a Builder with a single channel, rank and bank group,
// and eight banks per group.
func MakeBuilder() Builder {
	return Builder{
		burstLength:  8,
		busWidth:     64,
		numChannel:   1,
		numRank:      1,
		numBankGroup: 1,
		numBank:      8,
		numRow:       32768,
		numCol:       1024,
	}
}

// WithBurstLength sets the burst length used to compute the column offset.
func (b Builder) WithBurstLength(n int) Builder { b.burstLength = n; return b }

// WithBusWidth sets the bus width in bits used to compute the access unit.
func (b Builder) WithBusWidth(n int) Builder { b.busWidth = n; return b }

// WithNumChannel sets the channel count.
func (b Builder) WithNumChannel(n int) Builder { b.numChannel = n; return b }

// WithNumRank sets the rank count.
func (b Builder) WithNumRank(n int) Builder { b.numRank = n; return b }

// WithNumBankGroup sets the bank group count.
func (b Builder) WithNumBankGroup(n int) Builder { b.numBankGroup = n; return b }

// WithNumBank sets the bank-per-group count.
func (b Builder) WithNumBank(n int) Builder { b.numBank = n; return b }

// WithNumRow sets the row count.
func (b Builder) WithNumRow(n int) Builder { b.numRow = n; return b }

// WithNumCol sets the column count.
func (b Builder) WithNumCol(n int) Builder { b.numCol = n; return b }

// Build produces the configured Mapper.
func (b Builder) Build() Mapper {
	m := &bitSliceMapper{}

	accessUnitBits := log2Ceil(uint64(b.busWidth/8) * uint64(b.burstLength))
	m.colShift = accessUnitBits
	m.colBits = log2Ceil(uint64(b.numCol))

	m.bankShift = m.colShift + m.colBits
	m.bankBits = log2Ceil(uint64(b.numBank))

	m.bankGroupShift = m.bankShift + m.bankBits
	m.bankGroupBits = log2Ceil(uint64(b.numBankGroup))

	m.rankShift = m.bankGroupShift + m.bankGroupBits
	m.rankBits = log2Ceil(uint64(b.numRank))

	m.rowShift = m.rankShift + m.rankBits

	return m
}

// bitSliceMapper carves a flat address into fields by shifting and masking,
// the way a real DRAM address decoder does.
type bitSliceMapper struct {
	colShift, colBits             int
	bankShift, bankBits           int
	bankGroupShift, bankGroupBits int
	rankShift, rankBits           int
	rowShift                      int
}

func (m *bitSliceMapper) Map(addr uint64) signal.Address {
	return signal.Address{
		Column:    int(extractBits(addr, m.colShift, m.colBits)),
		Bank:      int(extractBits(addr, m.bankShift, m.bankBits)),
		BankGroup: int(extractBits(addr, m.bankGroupShift, m.bankGroupBits)),
		Rank:      int(extractBits(addr, m.rankShift, m.rankBits)),
		Row:       int(addr >> uint(m.rowShift)),
	}
}

func extractBits(addr uint64, shift, bits int) uint64 {
	if bits <= 0 {
		return 0
	}

	mask := uint64(1)<<uint(bits) - 1

	return (addr >> uint(shift)) & mask
}

// log2Ceil returns ceil(log2(n)), treating n<=1 as needing zero bits.
func log2Ceil(n uint64) int {
	bits := 0
	v := uint64(1)

	for v < n {
		v <<= 1
		bits++
	}

	return bits
}
