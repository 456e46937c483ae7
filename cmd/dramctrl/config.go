package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/dramctrl/internal/org"
)

// yamlConfig is the on-disk shape a run loads, mirroring dramctrl.Config and
// dramctrl.Builder's tunables one field at a time rather than embedding the
// library types directly, so the file format stays stable even if internal
// field names move around.
type yamlConfig struct {
	Ranks         int `yaml:"ranks"`
	BankGroups    int `yaml:"bank_groups"`
	BanksPerGroup int `yaml:"banks_per_group"`

	RequestersPerChannel int `yaml:"requesters_per_channel"`
	TransQueueSize       int `yaml:"trans_queue_size"`
	DistTransQueueSize   int `yaml:"dist_trans_queue_size"`
	CommandQueueCapacity int `yaml:"command_queue_capacity"`

	UnifiedQueue   bool   `yaml:"unified_queue"`
	DistController bool   `yaml:"dist_controller"`
	RowBufPolicy   string `yaml:"row_buf_policy"`

	LinkLatency       uint64 `yaml:"link_latency"`
	SrefThreshold     int    `yaml:"sref_threshold"`
	EnableSelfRefresh bool   `yaml:"enable_self_refresh"`
	EnableHBMDualCmd  bool   `yaml:"enable_hbm_dual_cmd"`

	ReadDelay  uint64 `yaml:"read_delay"`
	WriteDelay uint64 `yaml:"write_delay"`

	TCK              float64 `yaml:"tck"`
	RequestSizeBytes int     `yaml:"request_size_bytes"`

	TREFI int `yaml:"trefi"`
	TRFC  int `yaml:"trfc"`

	OutputPrefix string `yaml:"output_prefix"`
	CommandTrace bool   `yaml:"command_trace"`

	TracePath string `yaml:"trace_path"`
}

func defaultYAMLConfig() yamlConfig {
	return yamlConfig{
		Ranks:                2,
		BankGroups:           1,
		BanksPerGroup:        8,
		RequestersPerChannel: 1,
		TransQueueSize:       32,
		DistTransQueueSize:   32,
		CommandQueueCapacity: 8,
		RowBufPolicy:         "open_page",
		SrefThreshold:        1000,
		ReadDelay:            20,
		WriteDelay:           20,
		TCK:                  0.625,
		RequestSizeBytes:     64,
		TREFI:                7800,
		TRFC:                 350,
	}
}

func loadYAMLConfig(path string) (yamlConfig, error) {
	cfg := defaultYAMLConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c yamlConfig) timingParams() org.Params {
	return org.DefaultParams()
}
