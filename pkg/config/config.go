// Package config loads the controller's static cluster definition
// (nodes, partitions, reservations, licenses, associations) and its
// tunables (§6) from a YAML file. cmd/flottactld's command-line flags
// do not override any value loaded here.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeDef is one static node definition (§3.5).
type NodeDef struct {
	Name             string `yaml:"name"`
	CPUs             uint32 `yaml:"cpus"`
	Sockets          uint32 `yaml:"sockets"`
	Cores            uint32 `yaml:"cores"`
	Threads          uint32 `yaml:"threads"`
	RealMemoryMB     uint32 `yaml:"real_memory_mb"`
	TmpDiskMB        uint32 `yaml:"tmp_disk_mb"`
	Weight           uint32 `yaml:"weight"`
	Features         string `yaml:"features"`
}

// PartitionDef is one static partition definition (§2 C6).
type PartitionDef struct {
	Name            string   `yaml:"name"`
	Nodes           []string `yaml:"nodes"`
	MaxNodes        uint32   `yaml:"max_nodes"`
	MinNodes        uint32   `yaml:"min_nodes"`
	MaxTimeMin      uint32   `yaml:"max_time_min"`
	Priority        uint32   `yaml:"priority"`
	Default         bool     `yaml:"default"`
	AllowedAccounts []string `yaml:"allowed_accounts"`
	AllowedUsers    []string `yaml:"allowed_users"`
	RootOnly        bool     `yaml:"root_only"`
	OverSubscribe   bool     `yaml:"oversubscribe"`
}

// ReservationDef is one static reservation definition.
type ReservationDef struct {
	Name            string   `yaml:"name"`
	Nodes           []string `yaml:"nodes"`
	StartTime       time.Time `yaml:"start_time"`
	EndTime         time.Time `yaml:"end_time"`
	AllowedUsers    []string `yaml:"allowed_users"`
	AllowedAccounts []string `yaml:"allowed_accounts"`
}

// LicenseDef declares a counted license pool.
type LicenseDef struct {
	Name  string `yaml:"name"`
	Total uint32 `yaml:"total"`
}

// AssocDef is one node of the static association tree (§2 C8).
type AssocDef struct {
	User             string `yaml:"user"`
	Account          string `yaml:"account"`
	Partition        string `yaml:"partition"`
	Parent           string `yaml:"parent"` // account name of the parent assoc, "" for root
	GrpCPUMins       uint64 `yaml:"grp_cpu_mins"`
	GrpWallMin       uint64 `yaml:"grp_wall_min"`
	GrpNodes         uint32 `yaml:"grp_nodes"`
	MaxCPUMinsPerJob uint64 `yaml:"max_cpu_mins_per_job"`
	MaxWallMinPerJob uint64 `yaml:"max_wall_min_per_job"`
}

// Tunables bundles the §6 scheduler/lifecycle/agent knobs that aren't
// themselves a static resource definition.
type Tunables struct {
	MaxJobCnt            uint32        `yaml:"max_job_cnt"`
	MinJobAge            time.Duration `yaml:"min_job_age"`
	FirstJobID           uint32        `yaml:"first_job_id"`
	KillWait             time.Duration `yaml:"kill_wait"`
	MsgTimeout           time.Duration `yaml:"msg_timeout"`
	BatchStartTimeout    time.Duration `yaml:"batch_start_timeout"`
	ResumeTimeout        time.Duration `yaml:"resume_timeout"`
	InactiveLimit        time.Duration `yaml:"inactive_limit"`
	OverTimeLimit        time.Duration `yaml:"over_time_limit"`
	FastSchedule         bool          `yaml:"fast_schedule"`
	EnforcePartLimits    bool          `yaml:"enforce_part_limits"`
	AccountingEnforce    bool          `yaml:"accounting_enforce"`
	PreemptMode          string        `yaml:"preempt_mode"`
	PrivateData          bool          `yaml:"private_data"`
	DefMemPerTaskMB      uint32        `yaml:"def_mem_per_task_mb"`
	MaxMemPerTaskMB      uint32        `yaml:"max_mem_per_task_mb"`
	JobRequeue           bool          `yaml:"job_requeue"`
	MaxAgentCnt          int           `yaml:"max_agent_cnt"`
	AgentThreadCount     int           `yaml:"agent_thread_count"`
	DefaultFanout        int           `yaml:"default_fanout"`
	SchedulerInterval    time.Duration `yaml:"scheduler_interval"`
	StateSaveInterval    time.Duration `yaml:"state_save_interval"`
	CredentialGrace      time.Duration `yaml:"credential_grace"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	RetryMinWait         time.Duration `yaml:"retry_min_wait"`
}

// Document is the on-disk YAML shape (§6).
type Document struct {
	ListenAddr   string           `yaml:"listen_addr"`
	StateDir     string           `yaml:"state_dir"`
	Tunables     Tunables         `yaml:"tunables"`
	Nodes        []NodeDef        `yaml:"nodes"`
	Partitions   []PartitionDef   `yaml:"partitions"`
	Reservations []ReservationDef `yaml:"reservations"`
	Licenses     []LicenseDef     `yaml:"licenses"`
	Associations []AssocDef       `yaml:"associations"`
}

// defaults mirrors the §6 default values named for each tunable.
func defaults() Tunables {
	return Tunables{
		MaxJobCnt:         10000,
		MinJobAge:         5 * time.Minute,
		FirstJobID:        1,
		KillWait:          30 * time.Second,
		MsgTimeout:        10 * time.Second,
		BatchStartTimeout: 10 * time.Second,
		ResumeTimeout:     60 * time.Second,
		FastSchedule:      true,
		EnforcePartLimits: false,
		AccountingEnforce: false,
		PreemptMode:       "OFF",
		PrivateData:       false,
		JobRequeue:        true,
		MaxAgentCnt:       64,
		AgentThreadCount:  16,
		DefaultFanout:     16,
		SchedulerInterval: 2 * time.Second,
		StateSaveInterval: 30 * time.Second,
		CredentialGrace:   5 * time.Minute,
		PingInterval:      30 * time.Second,
		RetryMinWait:      1 * time.Second,
	}
}

// Load reads and parses a YAML document from path, filling any field
// left zero with its §6 default.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	doc := &Document{Tunables: defaults()}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if doc.StateDir == "" {
		doc.StateDir = "/var/lib/flottactld"
	}
	if doc.ListenAddr == "" {
		doc.ListenAddr = "0.0.0.0:6817"
	}
	return doc, nil
}

// Live is the controller's mutable Config-lock slot (§4.4): the subset
// of a Document a running controller may change without a restart
// (currently just the tunables RECONFIGURE rewrites). Static resource
// definitions (nodes/partitions/...) are loaded once at startup into
// their own registries and are not part of this lock.
type Live struct {
	sync.RWMutex
	Tunables Tunables
}

// NewLive seeds a Live snapshot from a loaded Document.
func NewLive(doc *Document) *Live {
	return &Live{Tunables: doc.Tunables}
}

// Reconfigure atomically replaces the live tunables, the effect of the
// RECONFIGURE RPC (§6). Callers must hold the Config write lock,
// acquired the same way pkg/controller/dispatch.go acquires it for any
// other handler declaring Config=LockWrite.
func (l *Live) Reconfigure(t Tunables) {
	l.Tunables = t
}
