package dramctrl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterStatEpochValueIsDeltaSinceLastSnapshot(t *testing.T) {
	c := NewCounterStat("x", "")
	c.IncBy(5)

	assert.Equal(t, uint64(5), c.Value())
	assert.InDelta(t, 5, c.epochValue(), 0)

	c.updateEpoch()
	c.IncBy(2)

	assert.InDelta(t, 2, c.epochValue(), 0)
	assert.InDelta(t, 7, c.cumulativeValue(), 0)
}

func TestHistogramStatBucketsCatchAllsAndInterior(t *testing.T) {
	h := NewHistogramStat("lat", "", 0, 100, 10)

	h.AddValue(-5)   // below start -> bucket 0
	h.AddValue(150)  // at/above end -> bucket NumBins-1
	h.AddValue(5)    // interior bucket 1, width 100/8=12.5
	h.AddValue(5)

	assert.Equal(t, uint64(1), h.cumulative[0])
	assert.Equal(t, uint64(1), h.cumulative[9])
	assert.Equal(t, uint64(2), h.cumulative[1])
	assert.Equal(t, float64(4), h.cumulativeValue())
}

func TestHistogramMeanExcludesCatchAllBuckets(t *testing.T) {
	h := NewHistogramStat("lat", "", 0, 100, 10)

	h.AddValue(-5)
	h.AddValue(10)
	h.AddValue(10)

	assert.InDelta(t, 10+12.5/2, h.Mean(), 1e-9)
}

func TestPreEpochComputeDerivesEnergyAndBandwidth(t *testing.T) {
	cfg := &Config{
		ActEnergyInc: 1, ReadEnergyInc: 2, WriteEnergyInc: 3,
		RefEnergyInc: 1, RefbEnergyInc: 1, ActStbEnergyInc: 0, PreStbEnergyInc: 0, SrefEnergyInc: 0,
		TCK: 1, RequestSizeBytes: 64,
	}

	s := NewStatistics(0)
	s.NumActCmds.IncBy(2)
	s.NumReadCmds.IncBy(3)
	s.NumWriteCmds.IncBy(1)
	s.EpochCycles.IncBy(10)
	s.RecordReadComplete(20, 25)
	s.RecordReadComplete(20, 25)

	s.PreEpochCompute(cfg)

	assert.InDelta(t, 2*1+3*2+1*3, s.TotalEnergy.cumulativeValue(), 1e-9)
	assert.InDelta(t, 20, s.AverageLatency.cumulativeValue(), 1e-9)
	assert.InDelta(t, float64(2*64)/10, s.AverageBandwidth.cumulativeValue(), 1e-9)
}

func TestPrintTableAndCSVDoNotPanicAndContainStatNames(t *testing.T) {
	s := NewStatistics(0)
	s.NumReadsDone.Inc()

	var table bytes.Buffer
	s.PrintTable(&table, false)
	assert.Contains(t, table.String(), "num_reads_done")

	var csv bytes.Buffer
	s.PrintCSVHeader(&csv)
	s.PrintCSVRow(&csv, 0, false)
	assert.Contains(t, csv.String(), "num_reads_done")
	assert.Contains(t, csv.String(), "epoch,channel")
}

func TestUpdateEpochResetsEpochDeltas(t *testing.T) {
	s := NewStatistics(0)
	s.NumReadsDone.Inc()
	s.UpdateEpoch()
	s.NumReadsDone.Inc()

	assert.InDelta(t, 1, s.NumReadsDone.epochValue(), 0)
	assert.InDelta(t, 2, s.NumReadsDone.cumulativeValue(), 0)
}
